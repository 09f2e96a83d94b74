package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suqaba/suqaba-cli/internal/api"
	"github.com/suqaba/suqaba-cli/internal/config"
	"github.com/suqaba/suqaba-cli/internal/constants"
	"github.com/suqaba/suqaba-cli/internal/events"
	"github.com/suqaba/suqaba-cli/internal/http"
	"github.com/suqaba/suqaba-cli/internal/logging"
	"github.com/suqaba/suqaba-cli/internal/ratelimit"
	"github.com/suqaba/suqaba-cli/internal/session"
)

// app bundles the collaborators every command needs.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	client   *api.Client
	sessions *session.Manager
	bus      *events.EventBus

	eventsDone chan struct{}
}

// loadConfig resolves the configuration.
// Priority: flags > environment > config file > defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.MergeWithFlags(apiBaseURL, tokenFile, proxyMode, logFile)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp wires config, transport, API client and session manager.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if logFile == "" && cfg.LogFile != "" {
		// log_file from the config file; --log-file was applied in PersistentPreRun
		_ = GetLogger().Close()
		logger = logging.NewLogger(logging.Options{
			Console: cmd.ErrOrStderr(),
			LogFile: cfg.LogFile,
			Verbose: verbose || debug,
		})
	}
	log := GetLogger()

	if http.NeedsProxyPassword(cfg) {
		pw, err := newPrompter(cmd).password(fmt.Sprintf("Proxy password for %s", cfg.ProxyUser))
		if err != nil {
			return nil, err
		}
		cfg.ProxyPassword = pw
	}

	limiter := ratelimit.NewRateLimiter(cfg.RequestsPerSecond, constants.DefaultRequestBurst, log)
	client, err := api.NewClient(cfg, api.WithLogger(log), api.WithRateLimiter(limiter))
	if err != nil {
		return nil, err
	}

	var store config.TokenStore
	if noPersist {
		store = config.NewMemoryTokenStore("")
	} else {
		store = config.NewFileTokenStore(cfg.TokenFile, log)
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	sessions := session.NewManager(client, store,
		session.WithLogger(log),
		session.WithEventBus(bus),
	)

	a := &app{
		cfg:        cfg,
		logger:     log,
		client:     client,
		sessions:   sessions,
		bus:        bus,
		eventsDone: make(chan struct{}),
	}
	go a.logEvents(bus.SubscribeAll())
	return a, nil
}

// Close releases the event bus and waits for pending events to be logged.
func (a *app) Close() {
	a.bus.Close()
	<-a.eventsDone
	a.logger.Debug().
		Int64("requests", a.client.TotalCalls()).
		Int64("dropped_events", a.bus.GetDroppedEventCount()).
		Msg("command finished")
}

// logEvents records bus events until the bus is closed.
func (a *app) logEvents(ch <-chan events.Event) {
	defer close(a.eventsDone)
	for ev := range ch {
		switch e := ev.(type) {
		case *events.JobAnomalyEvent:
			a.logger.Warn().Str("job_id", e.JobID).Str("from", e.From).Str("to", e.To).Msg(e.Detail)
		case *events.SubmitDiscardedEvent:
			a.logger.Warn().Str("job_id", e.JobID).Msg("submission discarded: " + e.Reason)
		case *events.SessionChangedEvent:
			a.logger.Debug().Str("user_id", e.UserID).Str("reason", e.Reason).Msg("session changed")
		case *events.JobStatusEvent:
			a.logger.Debug().Str("job_id", e.JobID).Str("from", e.OldStatus).Str("to", e.NewStatus).Msg("job status changed")
		case *events.ErrorEvent:
			a.logger.Error().Err(e.Error).Str("source", e.Source).Str("job_id", e.JobID).Msg("background error")
		}
	}
}

// requireSession restores the persisted session and fails if there is none.
func (a *app) requireSession(ctx context.Context) (*session.Session, error) {
	if s := a.sessions.Current(); s != nil {
		return s, nil
	}
	if _, err := a.sessions.Restore(ctx); err != nil {
		return nil, err
	}
	s, err := a.sessions.Require()
	if errors.Is(err, api.ErrUnauthenticated) {
		return nil, fmt.Errorf("%w (run 'suqaba login')", err)
	}
	return s, err
}

// runWithApp builds the app for cmd and closes it after fn returns.
func runWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(GetContext(cmd), a)
}
