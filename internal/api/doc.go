// Package api provides the market-data REST client.
//
// Endpoints (relative to https://www.tsanghi.com/api/fin):
//   - GET /{stock|etf}/{exchange}/list?token=
//   - GET /{stock|etf}/{exchange}/daily?token=&ticker=&start_date=&end_date=
//
// Responses share the envelope {"code":200,"msg":"...","data":[...]}.
// Stocks and funds live under different path segments and the upstream
// answers a fund requested through the stock path with an empty success,
// so callers must route by the instrument's stored category.
package api
