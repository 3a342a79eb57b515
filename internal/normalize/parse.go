package normalize

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rickgao/quotesync/internal/model"
)

type prices struct {
	open, high, low, close, volume decimal.Decimal
	turnover                       decimal.NullDecimal
	changePct                      decimal.NullDecimal
	premiumRate                    decimal.NullDecimal
}

func (p *prices) parse(raw model.RawBar) error {
	var err error
	if p.open, err = required("open", raw.Open); err != nil {
		return err
	}
	if p.high, err = required("high", raw.High); err != nil {
		return err
	}
	if p.low, err = required("low", raw.Low); err != nil {
		return err
	}
	if p.close, err = required("close", raw.Close); err != nil {
		return err
	}
	if p.volume, err = required("volume", raw.Volume); err != nil {
		return err
	}
	if p.turnover, err = optional("turnover", raw.Turnover); err != nil {
		return err
	}
	if p.changePct, err = optional("change_pct", raw.ChangePct); err != nil {
		return err
	}
	if p.premiumRate, err = optional("premium_rate", raw.PremiumRate); err != nil {
		return err
	}
	return nil
}

func required(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("%s missing", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s %q not numeric", field, s)
	}
	return d, nil
}

func optional(field, s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%s %q not numeric", field, s)
	}
	return decimal.NewNullDecimal(d), nil
}
