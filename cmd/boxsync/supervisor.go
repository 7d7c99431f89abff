package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/boxsync/internal/infrastructure/config"
	"github.com/nerrad567/boxsync/internal/infrastructure/logging"
	"github.com/nerrad567/boxsync/internal/provider"
)

// connector is the part of the bridge the supervisor drives.
type connector interface {
	Connect(ctx context.Context) error
}

// superviseConnection reconnects the bridge each time lost is signalled.
//
// Attempts back off exponentially from InitialDelay up to MaxDelay and
// continue until one succeeds or ctx is cancelled. With reconnection
// disabled the first loss is returned as an error so the process exits.
// Rejected credentials stop the retries.
//
// Returns:
//   - error: nil when ctx is cancelled, the loss when reconnection is
//     disabled, or the authentication failure
func superviseConnection(ctx context.Context, bridge connector, lost <-chan struct{}, cfg config.MQTTReconnectConfig, log *logging.Logger) error {
	initial := time.Duration(cfg.InitialDelay) * time.Second
	maxDelay := time.Duration(cfg.MaxDelay) * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-lost:
		}

		if !cfg.Enabled {
			return fmt.Errorf("broker connection lost and reconnection is disabled")
		}

		delay := initial
		for attempt := 1; ; attempt++ {
			log.Info("reconnecting to broker", "attempt", attempt, "delay", delay)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}

			err := bridge.Connect(ctx)
			if err == nil {
				log.Info("broker reconnected", "attempts", attempt)
				break
			}
			if ctx.Err() != nil {
				return nil
			}
			if isFatalConnectError(err) {
				return fmt.Errorf("broker reconnect: %w", err)
			}
			log.Warn("broker reconnect failed", "attempt", attempt, "error", err)
			delay = nextDelay(delay, maxDelay)
		}
	}
}

// isFatalConnectError reports whether err means the account credentials were
// rejected.
func isFatalConnectError(err error) bool {
	return errors.Is(err, provider.ErrAuthentication)
}

// nextDelay doubles d, capped at maxDelay. A non-positive d becomes one second.
func nextDelay(d, maxDelay time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	d *= 2
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}
	return d
}
