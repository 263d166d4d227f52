package signal

import (
	"golang.org/x/time/rate"

	"github.com/dkeye/Relay/internal/config"
)

// newLimiter returns the inbound frame limiter of one connection.
func newLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
}
