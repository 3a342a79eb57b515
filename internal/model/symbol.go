package model

import (
	"fmt"
	"strings"
)

// Upstream exchange codes.
const (
	ExchangeShanghai = "XSHG"
	ExchangeShenzhen = "XSHE"
	ExchangeBeijing  = "BJSE"
)

// NormalizeExchangeCodes upper-cases and trims codes, dropping blanks.
func NormalizeExchangeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Exchange maps an upstream exchange code to the local symbol prefix.
type Exchange struct {
	Code   string // Upstream code (e.g., "XSHG")
	Prefix string // Symbol prefix (e.g., "SH")
	Name   string
}

var exchanges = []Exchange{
	{Code: ExchangeShanghai, Prefix: "SH", Name: "Shanghai Stock Exchange"},
	{Code: ExchangeShenzhen, Prefix: "SZ", Name: "Shenzhen Stock Exchange"},
	{Code: ExchangeBeijing, Prefix: "BJ", Name: "Beijing Stock Exchange"},
}

// ExchangeByCode looks up an exchange by its upstream code.
func ExchangeByCode(code string) (Exchange, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, e := range exchanges {
		if e.Code == code {
			return e, true
		}
	}
	return Exchange{}, false
}

// ExchangeByPrefix looks up an exchange by its symbol prefix.
func ExchangeByPrefix(prefix string) (Exchange, bool) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	for _, e := range exchanges {
		if e.Prefix == prefix {
			return e, true
		}
	}
	return Exchange{}, false
}

// ParseSymbol splits "SH.510050" into its exchange and local code.
func ParseSymbol(symbol string) (Exchange, string, error) {
	prefix, code, ok := strings.Cut(strings.TrimSpace(symbol), ".")
	if !ok || prefix == "" || code == "" {
		return Exchange{}, "", fmt.Errorf("invalid symbol %q: want {EXCHANGE}.{CODE}", symbol)
	}
	ex, ok := ExchangeByPrefix(prefix)
	if !ok {
		return Exchange{}, "", fmt.Errorf("invalid symbol %q: unknown exchange prefix %q", symbol, prefix)
	}
	return ex, code, nil
}

// NewSymbol builds the exchange-qualified symbol for a code listed on exchangeCode.
func NewSymbol(exchangeCode, code string) (string, error) {
	ex, ok := ExchangeByCode(exchangeCode)
	if !ok {
		return "", fmt.Errorf("unsupported exchange %q", exchangeCode)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("empty code for exchange %s", ex.Code)
	}
	return ex.Prefix + "." + code, nil
}
