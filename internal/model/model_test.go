package model

import (
	"testing"
	"time"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"stock", CategoryStock, false},
		{"FUND", CategoryFund, false},
		{"etf", CategoryFund, false},
		{" Stock ", CategoryStock, false},
		{"bond", CategoryUnknown, true},
		{"", CategoryUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCategory(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCategoryRouting(t *testing.T) {
	if got := CategoryStock.PathSegment(); got != "stock" {
		t.Errorf("CategoryStock.PathSegment() = %q, want %q", got, "stock")
	}
	if got := CategoryFund.PathSegment(); got != "etf" {
		t.Errorf("CategoryFund.PathSegment() = %q, want %q", got, "etf")
	}
	if got := CategoryUnknown.PathSegment(); got != "" {
		t.Errorf("CategoryUnknown.PathSegment() = %q, want empty", got)
	}

	if !CategoryStock.SupportsExchange(ExchangeBeijing) {
		t.Error("stocks should support BJSE")
	}
	if CategoryFund.SupportsExchange(ExchangeBeijing) {
		t.Error("funds should not support BJSE")
	}
}

func TestCategoryText(t *testing.T) {
	var c Category
	if err := c.UnmarshalText([]byte("etf")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if c != CategoryFund {
		t.Errorf("category = %v, want %v", c, CategoryFund)
	}
	b, _ := c.MarshalText()
	if string(b) != "fund" {
		t.Errorf("MarshalText = %q, want %q", b, "fund")
	}
}

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		symbol   string
		wantCode string
		wantEx   string
		wantErr  bool
	}{
		{"SH.510050", "510050", ExchangeShanghai, false},
		{"sz.000001", "000001", ExchangeShenzhen, false},
		{"BJ.430047", "430047", ExchangeBeijing, false},
		{"HK.00700", "", "", true},
		{"510050", "", "", true},
		{"SH.", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			ex, code, err := ParseSymbol(tt.symbol)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSymbol(%q) error = %v, wantErr %v", tt.symbol, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if ex.Code != tt.wantEx {
				t.Errorf("exchange = %q, want %q", ex.Code, tt.wantEx)
			}
		})
	}
}

func TestNewSymbol(t *testing.T) {
	got, err := NewSymbol("XSHE", "159915")
	if err != nil {
		t.Fatalf("NewSymbol failed: %v", err)
	}
	if got != "SZ.159915" {
		t.Errorf("NewSymbol = %q, want %q", got, "SZ.159915")
	}

	if _, err := NewSymbol("NYSE", "IBM"); err == nil {
		t.Error("expected error for unsupported exchange")
	}
}

func TestNormalizeExchangeCodes(t *testing.T) {
	got := NormalizeExchangeCodes([]string{" xshg", "", "XSHE ", "  ", "bjse"})
	want := []string{"XSHG", "XSHE", "BJSE"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeExchangeCodes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NormalizeExchangeCodes()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if got := NormalizeExchangeCodes(nil); got == nil || len(got) != 0 {
		t.Errorf("NormalizeExchangeCodes(nil) = %#v, want empty slice", got)
	}
}

func TestDateOf(t *testing.T) {
	// 2024-01-15 20:00 UTC is already 2024-01-16 in Shanghai.
	ts := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)
	got := DateOf(ts, ChinaTZ)
	if want := Date(2024, 1, 16); !got.Equal(want) {
		t.Errorf("DateOf = %v, want %v", got, want)
	}
}

func TestWeekdays(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"weekend only", Date(2024, 1, 13), Date(2024, 1, 14), 0},
		{"full week", Date(2024, 1, 15), Date(2024, 1, 21), 5},
		{"single weekday", Date(2024, 1, 16), Date(2024, 1, 16), 1},
		{"reversed", Date(2024, 1, 16), Date(2024, 1, 15), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Weekdays(tt.start, tt.end); got != tt.want {
				t.Errorf("Weekdays = %d, want %d", got, tt.want)
			}
		})
	}
}
