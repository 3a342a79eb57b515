package syncer

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/quotesync/internal/model"
)

// ErrUnknownInstrument is returned by SyncOne for a symbol missing from the catalog.
var ErrUnknownInstrument = errors.New("unknown instrument")

// Status is the terminal state of one instrument in one run.
type Status int

const (
	StatusUpToDate Status = iota + 1
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUpToDate:
		return "up_to_date"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return "pending"
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EmptyReason explains an UP_TO_DATE outcome.
type EmptyReason string

const (
	// EmptyNoRange: the watermark is already today, nothing was fetched.
	EmptyNoRange EmptyReason = "no_range"
	// EmptyNoTradingDays: the range was too short to expect bars.
	EmptyNoTradingDays EmptyReason = "no_trading_days"
	// EmptyResponse: zero bars for a range that should have had some.
	EmptyResponse EmptyReason = "empty_response"
	// EmptyMalformed: the upstream body could not be decoded.
	EmptyMalformed EmptyReason = "malformed_response"
	// EmptyAllRejected: bars came back but none passed validation.
	EmptyAllRejected EmptyReason = "all_rejected"
)

// Suspicious reports whether the reason warrants operator attention.
func (r EmptyReason) Suspicious() bool {
	return r == EmptyResponse || r == EmptyMalformed || r == EmptyAllRejected
}

// Outcome is the result of reconciling one instrument.
type Outcome struct {
	Symbol      string
	Category    model.Category
	Status      Status
	RowsWritten int
	Rejected    int
	RangeStart  *time.Time // Requested range, nil when no fetch happened
	RangeEnd    *time.Time
	Watermark   *time.Time // Watermark after the run
	Empty       EmptyReason
	Err         error
}

// Suspicious reports an UP_TO_DATE outcome that may hide a routing problem.
func (o Outcome) Suspicious() bool {
	return o.Status == StatusUpToDate && o.Empty.Suspicious()
}

// FatalError aborts a batch. It wraps the error that made every further
// request pointless.
type FatalError struct {
	Symbol string
	Err    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error at %s: %v", e.Symbol, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
