package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickgao/quotesync/internal/model"
)

// ToRaw converts a BarItem to a model.RawBar for normalization.
func (b BarItem) ToRaw() model.RawBar {
	return model.RawBar{
		Date:        strings.TrimSpace(b.Date),
		Open:        string(b.Open),
		High:        string(b.High),
		Low:         string(b.Low),
		Close:       string(b.Close),
		Volume:      string(b.Volume),
		Turnover:    string(b.Turnover),
		ChangePct:   string(b.ChangePct),
		PremiumRate: string(b.PremiumRate),
	}
}

// ToModel converts an InstrumentItem listed on exchange to a model.Instrument.
// Items without an is_active field are active.
func (i InstrumentItem) ToModel(cat model.Category, exchange string, now time.Time) (model.Instrument, error) {
	code := strings.TrimSpace(i.Ticker)
	symbol, err := model.NewSymbol(exchange, code)
	if err != nil {
		return model.Instrument{}, err
	}

	inst := model.Instrument{
		Symbol:      symbol,
		Code:        code,
		Name:        strings.TrimSpace(i.Name),
		Exchange:    exchange,
		Category:    cat,
		Active:      i.IsActive == nil || bool(*i.IsActive),
		FirstSeenAt: now,
		UpdatedAt:   now,
	}

	if inst.ListedOn, err = parseOptionalDate(i.ListingDate); err != nil {
		return model.Instrument{}, fmt.Errorf("%s listing_date: %w", symbol, err)
	}
	if inst.DelistedOn, err = parseOptionalDate(i.DelistingDate); err != nil {
		return model.Instrument{}, fmt.Errorf("%s delisting_date: %w", symbol, err)
	}
	if inst.DelistedOn != nil {
		inst.Active = false
	}

	return inst, nil
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil, nil
	}
	// Some feeds append a time component.
	if len(v) > len(model.DateLayout) {
		v = v[:len(model.DateLayout)]
	}
	t, err := model.ParseDate(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
