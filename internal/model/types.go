package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Catalog Types
// -----------------------------------------------------------------------------

// Instrument is a tradable security known to the catalog.
type Instrument struct {
	Symbol       string     // Primary key (e.g., "SH.510050")
	Code         string     // Local code (e.g., "510050")
	Name         string     // Display name
	Exchange     string     // Upstream exchange code (e.g., "XSHG")
	Category     Category   // Immutable once LastSyncedOn is set
	Active       bool       // False once delisted or dropped from the upstream list
	ListedOn     *time.Time // Listing date, if known
	DelistedOn   *time.Time // Delisting date, if known
	LastSyncedOn *time.Time // Watermark; nil = never synced
	FirstSeenAt  time.Time  // First list sync that saw the instrument
	UpdatedAt    time.Time  // Last catalog write
}

// HasHistory reports whether price history has been written for the instrument.
func (i Instrument) HasHistory() bool {
	return i.LastSyncedOn != nil
}

// -----------------------------------------------------------------------------
// Time-Series Types
// -----------------------------------------------------------------------------

// RawBar is one upstream daily record before validation. Numeric fields hold
// the upstream text verbatim; empty means absent.
type RawBar struct {
	Date        string
	Open        string
	High        string
	Low         string
	Close       string
	Volume      string
	Turnover    string
	ChangePct   string
	PremiumRate string // Funds only
}

// DailyBar is one day's canonical trading record.
type DailyBar struct {
	TradeDate time.Time // Primary key with Symbol
	Symbol    string

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	Volume            int64
	Turnover          decimal.Decimal
	TurnoverEstimated bool // Turnover derived as volume * close

	Change      decimal.NullDecimal // Close minus prior close
	ChangePct   decimal.NullDecimal // Percent change from prior close
	PremiumRate decimal.NullDecimal // Funds only
}

// -----------------------------------------------------------------------------
// Bookkeeping Types
// -----------------------------------------------------------------------------

// RunStatus is the lifecycle state of a SyncRun.
type RunStatus string

const (
	RunRunning             RunStatus = "running"
	RunCompleted           RunStatus = "completed"
	RunCompletedWithErrors RunStatus = "completed_with_failures"
	RunAborted             RunStatus = "aborted"
	RunCancelled           RunStatus = "cancelled"
	RunFailed              RunStatus = "failed"
)

// SyncRun records one batch execution for observability.
type SyncRun struct {
	ID          uuid.UUID  `json:"id"`
	Scope       string     `json:"scope"` // e.g. "batch:fund"
	Category    Category   `json:"category"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Status      RunStatus  `json:"status"`
	Succeeded   int        `json:"succeeded"`
	UpToDate    int        `json:"up_to_date"`
	Failed      int        `json:"failed"`
	Suspicious  int        `json:"suspicious"`
	RowsWritten int64      `json:"rows_written"`
	Error       string     `json:"error,omitempty"`
}
