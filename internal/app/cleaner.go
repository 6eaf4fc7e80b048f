package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Cleaner periodically sweeps expired sessions out of the registry.
type Cleaner struct {
	Sessions *SessionRegistry
	Interval time.Duration
}

// Run blocks until ctx is canceled, sweeping once per interval.
func (c *Cleaner) Run(ctx context.Context) {
	log.Info().Str("module", "app.cleaner").Dur("interval", c.Interval).Msg("cleaner started")
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.cleaner").Msg("cleaner stopped")
			return
		case now := <-ticker.C:
			if n := c.Sessions.SweepExpired(now); n > 0 {
				log.Info().Str("module", "app.cleaner").Int("swept", n).Msg("expired sessions removed")
			}
		}
	}
}
