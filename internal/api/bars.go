package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rickgao/quotesync/internal/model"
)

// FetchDailyBars returns the daily bars for one instrument over [Start, End].
// The upstream path is chosen from req.Category only.
//
// A body that cannot be decoded is not an error: the result has no bars and
// Malformed set, so callers can tell it apart from a genuinely empty range.
func (c *Client) FetchDailyBars(ctx context.Context, req BarsRequest) (*BarsResult, error) {
	if err := checkRoute(req.Category, req.Exchange); err != nil {
		return nil, err
	}
	if req.Ticker == "" {
		return nil, errors.New("fetch daily bars: empty ticker")
	}

	path := fmt.Sprintf("/%s/%s/daily", req.Category.PathSegment(), req.Exchange)
	query := url.Values{}
	query.Set("ticker", req.Ticker)
	if !req.Start.IsZero() {
		query.Set("start_date", model.FormatDate(req.Start))
	}
	if !req.End.IsZero() {
		query.Set("end_date", model.FormatDate(req.End))
	}

	bars, err := getList[BarItem](ctx, c, path, query)
	if err != nil {
		if errors.Is(err, ErrMalformedResponse) {
			c.logger.Warn("malformed daily bars response",
				"path", path,
				"ticker", req.Ticker,
				"error", err,
			)
			return &BarsResult{Malformed: true}, nil
		}
		return nil, fmt.Errorf("daily bars %s.%s: %w", req.Exchange, req.Ticker, err)
	}

	return &BarsResult{Bars: bars}, nil
}
