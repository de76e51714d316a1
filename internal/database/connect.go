package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const connectBackoff = 2 * time.Second

// dial runs connect up to attempts times, doubling the pause between tries.
// Containers started together usually need a few seconds before the stores
// accept connections.
func dial(ctx context.Context, store string, attempts int, log zerolog.Logger, connect func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	wait := connectBackoff
	var err error
	for i := 1; i <= attempts; i++ {
		if err = connect(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}

		log.Warn().Err(err).
			Str("store", store).
			Int("attempt", i).
			Dur("retry_in", wait).
			Msg("Store not reachable yet")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return fmt.Errorf("%s unreachable after %d attempts: %w", store, attempts, err)
}
