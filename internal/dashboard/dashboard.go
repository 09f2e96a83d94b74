// Package dashboard derives the user's job summary from the session counters
// and the server's list of recent simulations.
package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/suqaba/suqaba-cli/internal/api"
	"github.com/suqaba/suqaba-cli/internal/constants"
	"github.com/suqaba/suqaba-cli/internal/jobs"
	"github.com/suqaba/suqaba-cli/internal/models"
	"github.com/suqaba/suqaba-cli/internal/session"
)

// Row is one recent simulation with its presentation hint.
type Row struct {
	Simulation models.Simulation
	Hint       jobs.Hint
}

// Summary is what the dashboard shows.
type Summary struct {
	Counts models.JobCounts
	Total  int
	// Recent is in server order; nothing is sorted, filtered or dropped.
	Recent []Row
}

// Build derives a Summary. Simulations with statuses the client does not know
// are kept and get the neutral hint.
func Build(counts models.JobCounts, sims []models.Simulation) Summary {
	rows := make([]Row, len(sims))
	for i, s := range sims {
		rows[i] = Row{Simulation: s, Hint: jobs.HintFor(s.Status)}
	}
	return Summary{
		Counts: counts,
		Total:  counts.Total(),
		Recent: rows,
	}
}

// Sessions is the part of the session manager the dashboard uses.
type Sessions interface {
	Require() (*session.Session, error)
	Current() *session.Session
	Refresh(ctx context.Context)
}

// Lister fetches recent simulations.
type Lister interface {
	ListSimulations(ctx context.Context, cred api.Credential, limit int) ([]models.Simulation, error)
}

// Aggregator loads dashboard summaries.
type Aggregator struct {
	sessions Sessions
	client   Lister
}

// New creates an Aggregator.
func New(sessions Sessions, client Lister) *Aggregator {
	return &Aggregator{sessions: sessions, client: client}
}

// Load refreshes the session counters and fetches up to limit recent
// simulations concurrently. A non-positive limit uses the default.
func (a *Aggregator) Load(ctx context.Context, limit int) (Summary, error) {
	sess, err := a.sessions.Require()
	if err != nil {
		return Summary{}, err
	}
	if limit <= 0 {
		limit = constants.DefaultListLimit
	}
	if limit > constants.MaxListLimit {
		limit = constants.MaxListLimit
	}

	var sims []models.Simulation
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.sessions.Refresh(gctx)
		return nil
	})
	g.Go(func() error {
		list, err := a.client.ListSimulations(gctx, sess, limit)
		if err != nil {
			return fmt.Errorf("failed to list simulations: %w", err)
		}
		sims = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	// Refresh may have replaced the session, or cleared it on a 401
	current := a.sessions.Current()
	if current == nil {
		return Summary{}, api.ErrUnauthenticated
	}
	return Build(current.JobCounts, sims), nil
}
