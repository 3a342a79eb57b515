package api

import (
	"context"
	"fmt"

	"github.com/rickgao/quotesync/internal/model"
)

// ListInstruments returns every instrument of a category listed on exchange.
func (c *Client) ListInstruments(ctx context.Context, cat model.Category, exchange string) ([]InstrumentItem, error) {
	if err := checkRoute(cat, exchange); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/%s/%s/list", cat.PathSegment(), exchange)
	items, err := getList[InstrumentItem](ctx, c, path, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s on %s: %w", cat, exchange, err)
	}

	c.logger.Debug("fetched instrument list",
		"category", cat.String(),
		"exchange", exchange,
		"count", len(items),
	)
	return items, nil
}

func checkRoute(cat model.Category, exchange string) error {
	if !cat.Valid() {
		return fmt.Errorf("%w: category %s", ErrUnsupported, cat)
	}
	if !cat.SupportsExchange(exchange) {
		return fmt.Errorf("%w: %s on exchange %q", ErrUnsupported, cat, exchange)
	}
	return nil
}
