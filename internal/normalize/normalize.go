// Package normalize converts upstream daily records into canonical DailyBars.
//
// Everything here is pure: no I/O, no clock. Invalid records are returned as
// Rejections so the caller can drop just that row.
package normalize

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/quotesync/internal/model"
)

// Percent change precision (decimal places).
const changePctPlaces = 4

// Reason explains why a raw bar was rejected.
type Reason string

const (
	ReasonBadDate     Reason = "bad_date"
	ReasonUnparsable  Reason = "unparsable"
	ReasonNegative    Reason = "negative"
	ReasonOHLCOrder   Reason = "ohlc_order"
	ReasonOutOfRange  Reason = "out_of_range"
	ReasonDuplicate   Reason = "duplicate_date"
	ReasonFractionVol Reason = "fractional_volume"
)

// Rejection describes a dropped raw bar.
type Rejection struct {
	Date   string
	Reason Reason
	Detail string
}

func (r Rejection) String() string {
	if r.Detail == "" {
		return fmt.Sprintf("%s: %s", r.Date, r.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", r.Date, r.Reason, r.Detail)
}

// Batch is the result of normalizing one fetch.
type Batch struct {
	Bars     []model.DailyBar // Valid bars in ascending date order
	Rejected []Rejection
}

// MaxDate returns the latest trade date in the batch, or false if empty.
func (b Batch) MaxDate() (time.Time, bool) {
	if len(b.Bars) == 0 {
		return time.Time{}, false
	}
	return b.Bars[len(b.Bars)-1].TradeDate, true
}

// Normalize converts a single raw bar. prevClose is the prior trading day's
// close; when it is null or zero the derived change fields stay null.
func Normalize(symbol string, cat model.Category, raw model.RawBar, prevClose decimal.NullDecimal) (model.DailyBar, *Rejection) {
	reject := func(reason Reason, detail string) (model.DailyBar, *Rejection) {
		return model.DailyBar{}, &Rejection{Date: raw.Date, Reason: reason, Detail: detail}
	}

	date, err := model.ParseDate(raw.Date)
	if err != nil {
		return reject(ReasonBadDate, err.Error())
	}

	var p prices
	if err := p.parse(raw); err != nil {
		return reject(ReasonUnparsable, err.Error())
	}

	for name, v := range map[string]decimal.Decimal{
		"open": p.open, "high": p.high, "low": p.low, "close": p.close, "volume": p.volume,
	} {
		if v.IsNegative() {
			return reject(ReasonNegative, name)
		}
	}
	if p.turnover.Valid && p.turnover.Decimal.IsNegative() {
		return reject(ReasonNegative, "turnover")
	}

	if p.high.LessThan(p.low) {
		return reject(ReasonOHLCOrder, "high < low")
	}
	if p.high.LessThan(p.open) || p.high.LessThan(p.close) {
		return reject(ReasonOHLCOrder, "high below open or close")
	}
	if p.low.GreaterThan(p.open) || p.low.GreaterThan(p.close) {
		return reject(ReasonOHLCOrder, "low above open or close")
	}

	if !p.volume.Equal(p.volume.Truncate(0)) {
		return reject(ReasonFractionVol, p.volume.String())
	}

	bar := model.DailyBar{
		TradeDate: date,
		Symbol:    symbol,
		Open:      p.open,
		High:      p.high,
		Low:       p.low,
		Close:     p.close,
		Volume:    p.volume.IntPart(),
	}

	if p.turnover.Valid {
		bar.Turnover = p.turnover.Decimal
	} else {
		bar.Turnover = p.volume.Mul(p.close)
		bar.TurnoverEstimated = true
	}

	if prevClose.Valid && !prevClose.Decimal.IsZero() {
		change := p.close.Sub(prevClose.Decimal)
		bar.Change = decimal.NewNullDecimal(change)
		if !p.changePct.Valid {
			bar.ChangePct = decimal.NewNullDecimal(
				change.Div(prevClose.Decimal).Mul(decimal.NewFromInt(100)).Round(changePctPlaces),
			)
		}
	}
	if p.changePct.Valid {
		bar.ChangePct = p.changePct
	}

	if cat == model.CategoryFund {
		bar.PremiumRate = p.premiumRate
	}

	return bar, nil
}

// NormalizeBatch normalizes a fetch for [start, end]. Raw bars are sorted by
// date first so each bar's prior close is the previous valid bar; prevClose
// seeds the first one. A bar dated after a rejected row gets no prior close,
// since the rejected day's close is unknown. Zero start or end leaves that
// side unbounded.
func NormalizeBatch(symbol string, cat model.Category, raws []model.RawBar, prevClose decimal.NullDecimal, start, end time.Time) Batch {
	sorted := make([]model.RawBar, len(raws))
	copy(sorted, raws)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	var (
		out      Batch
		seen     = make(map[time.Time]bool, len(sorted))
		prev     = prevClose
		prevDate time.Time // zero for the stored close
		gapDate  time.Time // latest rejected day after prevDate
	)

	for _, raw := range sorted {
		date, dateErr := model.ParseDate(raw.Date)
		if dateErr == nil && !gapDate.IsZero() && gapDate.After(prevDate) && gapDate.Before(date) {
			prev = decimal.NullDecimal{}
		}

		bar, rej := Normalize(symbol, cat, raw, prev)
		if rej != nil {
			out.Rejected = append(out.Rejected, *rej)
			if dateErr == nil {
				gapDate = date
			}
			continue
		}
		if (!start.IsZero() && bar.TradeDate.Before(start)) || (!end.IsZero() && bar.TradeDate.After(end)) {
			out.Rejected = append(out.Rejected, Rejection{Date: raw.Date, Reason: ReasonOutOfRange})
			continue
		}
		if seen[bar.TradeDate] {
			out.Rejected = append(out.Rejected, Rejection{Date: raw.Date, Reason: ReasonDuplicate})
			continue
		}
		seen[bar.TradeDate] = true
		out.Bars = append(out.Bars, bar)
		prev = decimal.NewNullDecimal(bar.Close)
		prevDate = bar.TradeDate
	}

	return out
}
