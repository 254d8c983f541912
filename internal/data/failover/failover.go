// Package failover wraps the primary (document store) and secondary
// (relational store) repositories behind the domain repository interfaces.
// Reads and writes route to whichever tier the storage resolver reports
// healthy; successful primary writes are mirrored to the secondary on a
// best-effort basis so the backup store stays close to the system of record.
package failover

import (
	"context"
	"log/slog"
	"time"
)

// mirrorTimeout bounds each best-effort secondary write
const mirrorTimeout = 5 * time.Second

// mirror runs a secondary-store write detached from the caller. Mirror
// failures are logged, never surfaced: the secondary catches up from the
// primary out of band when it recovers.
func mirror(logger *slog.Logger, operation string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			logger.Warn("Failed to mirror write to secondary store",
				"operation", operation, "error", err)
		}
	}()
}
