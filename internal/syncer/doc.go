// Package syncer is the incremental synchronization engine.
//
// Per instrument the Reconciler moves through
//
//	PENDING -> FETCHING -> UP_TO_DATE | COMPLETED | FAILED
//
// computing the missing range from the stored watermark, fetching exactly
// that range through the instrument's category path, normalizing the bars and
// writing them together with the new watermark in one transaction.
//
// The Runner drives the Reconciler over a list of instruments. A FAILED
// instrument never stops the batch; a fatal fetch error (authentication,
// unsupported routing) aborts it. Stop requests take effect between
// instruments, never during a write.
//
// Service exposes the three trigger operations: SyncInstrumentList, SyncOne
// and SyncBatch.
package syncer
