package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/quotesync/internal/config"
)

// ApplicationName tags quotesync sessions in pg_stat_activity.
const ApplicationName = "quotesync"

// BuildConnString renders a postgres:// URL for cfg. Credentials are escaped
// by net/url; an empty ssl mode falls back to "prefer".
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
