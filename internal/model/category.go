package model

import (
	"fmt"
	"strings"
)

// Category is the stock-vs-fund classification of an instrument.
// It selects the upstream path and payload shape used to fetch bars.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryStock
	CategoryFund
)

// Categories lists every valid category.
var Categories = []Category{CategoryStock, CategoryFund}

// ParseCategory accepts "stock", "fund" or "etf" (case-insensitive).
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stock":
		return CategoryStock, nil
	case "fund", "etf":
		return CategoryFund, nil
	}
	return CategoryUnknown, fmt.Errorf("unknown category %q", s)
}

func (c Category) String() string {
	switch c {
	case CategoryStock:
		return "stock"
	case CategoryFund:
		return "fund"
	}
	return "unknown"
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryStock || c == CategoryFund
}

// PathSegment returns the upstream API path segment for the category.
func (c Category) PathSegment() string {
	switch c {
	case CategoryStock:
		return "stock"
	case CategoryFund:
		return "etf"
	}
	return ""
}

// Exchanges returns the exchange codes the category is listed on.
func (c Category) Exchanges() []string {
	switch c {
	case CategoryStock:
		return []string{ExchangeShanghai, ExchangeShenzhen, ExchangeBeijing}
	case CategoryFund:
		return []string{ExchangeShanghai, ExchangeShenzhen}
	}
	return nil
}

// SupportsExchange reports whether code is a valid exchange for c.
func (c Category) SupportsExchange(code string) bool {
	for _, e := range c.Exchanges() {
		if e == code {
			return true
		}
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
