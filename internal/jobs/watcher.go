package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/suqaba/suqaba-cli/internal/api"
	"github.com/suqaba/suqaba-cli/internal/constants"
	"github.com/suqaba/suqaba-cli/internal/logging"
)

// WatchConfig configures a Watcher.
type WatchConfig struct {
	// Interval between polls; clamped to [MinPollInterval, MaxPollInterval].
	Interval time.Duration
	Logger   *logging.Logger
	// OnUpdate is called after every applied snapshot, from the watcher goroutine.
	OnUpdate func(m *Machine, changed bool)
}

// Watcher polls one job until it reaches a terminal status, the session is
// rejected, or it is closed.
type Watcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Watch starts polling m's job in a new goroutine.
// Poll failures are logged and the next tick tries again. A 401 stops the watch.
func Watch(ctx context.Context, client API, cred api.Credential, m *Machine, cfg WatchConfig) *Watcher {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{cancel: cancel, done: make(chan struct{})}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := clampInterval(cfg.Interval)

	go func() {
		defer close(w.done)
		w.err = w.run(ctx, client, cred, m, interval, logger, cfg.OnUpdate)
	}()
	return w
}

func (w *Watcher) run(ctx context.Context, client API, cred api.Credential, m *Machine,
	interval time.Duration, logger *logging.Logger, onUpdate func(*Machine, bool)) error {

	id := m.ID()
	if id == "" {
		return errors.New("job has not been submitted yet")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if m.Status().Terminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		sim, err := client.GetSimulation(ctx, cred, id)
		if ctx.Err() != nil {
			// Closed while the request was in flight; drop the result
			return nil
		}
		if err != nil {
			if api.IsAuthError(err) || errors.Is(err, api.ErrUnauthenticated) {
				logger.Warn().Str("job_id", id).Msg("session expired, stopped watching job")
				return err
			}
			logger.Debug().Err(err).Str("job_id", id).Msg("job poll failed")
			continue
		}

		changed := m.Apply(*sim)
		if onUpdate != nil {
			onUpdate(m, changed)
		}
	}
}

// Done is closed when the watcher stops.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Err returns why the watcher stopped early: nil after a terminal status or
// Close, the authentication error after a 401. Valid once Done is closed.
func (w *Watcher) Err() error {
	<-w.done
	return w.err
}

// Close stops polling, cancels any request in flight and waits for the goroutine to exit.
func (w *Watcher) Close() {
	w.cancel()
	<-w.done
}

// minPollInterval is a variable so tests can poll quickly.
var minPollInterval = constants.MinPollInterval

func clampInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return constants.DefaultPollInterval
	}
	if d < minPollInterval {
		return minPollInterval
	}
	if d > constants.MaxPollInterval {
		return constants.MaxPollInterval
	}
	return d
}
