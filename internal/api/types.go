package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rickgao/quotesync/internal/model"
)

// Number holds a JSON number or numeric string verbatim, so that decimal
// parsing happens without a float64 round trip. Empty means null or absent.
type Number string

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(strings.TrimSpace(s))
		return nil
	}
	*n = Number(b)
	return nil
}

// Flag decodes 1/0, true/false or their string forms.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(b []byte) error {
	switch strings.Trim(strings.ToLower(string(bytes.TrimSpace(b))), `"`) {
	case "1", "true", "y", "yes":
		*f = true
	case "0", "false", "n", "no", "null", "":
		*f = false
	default:
		return fmt.Errorf("invalid flag %s", b)
	}
	return nil
}

// InstrumentItem is one entry of the /list endpoint.
type InstrumentItem struct {
	Ticker        string  `json:"ticker"`
	Name          string  `json:"name"`
	ExchangeCode  string  `json:"exchange_code"`
	CountryCode   string  `json:"country_code"`
	CurrencyCode  string  `json:"currency_code"`
	IsActive      *Flag   `json:"is_active"`
	ListingDate   *string `json:"listing_date"`
	DelistingDate *string `json:"delisting_date"`
}

// BarItem is one entry of the /daily endpoint.
type BarItem struct {
	Ticker      string `json:"ticker"`
	Date        string `json:"date"`
	Open        Number `json:"open"`
	High        Number `json:"high"`
	Low         Number `json:"low"`
	Close       Number `json:"close"`
	Volume      Number `json:"volume"`
	Turnover    Number `json:"turnover"`
	ChangePct   Number `json:"change_pct"`
	PremiumRate Number `json:"premium_rate"`
}

// BarsRequest selects one instrument's bars over [Start, End].
type BarsRequest struct {
	Category model.Category
	Exchange string // Upstream exchange code
	Ticker   string // Local code without exchange prefix
	Start    time.Time
	End      time.Time
}

// BarsResult is the outcome of a successful daily-bar fetch.
type BarsResult struct {
	Bars []BarItem

	// Malformed is set when the body could not be decoded. Bars is empty and
	// the fetch is otherwise treated as a success.
	Malformed bool
}
