package jobs

import (
	"context"
	"fmt"

	"github.com/suqaba/suqaba-cli/internal/api"
	"github.com/suqaba/suqaba-cli/internal/logging"
	"github.com/suqaba/suqaba-cli/internal/models"
)

// API is the subset of the API client used to act on a single job.
type API interface {
	GetSimulation(ctx context.Context, cred api.Credential, id string) (*models.Simulation, error)
	StartSimulation(ctx context.Context, cred api.Credential, id string) error
	StopSimulation(ctx context.Context, cred api.Credential, id string) error
	DeleteSimulation(ctx context.Context, cred api.Credential, id string) error
}

// Controller drives a Machine through the API. Every action checks the
// machine first, so a disallowed action never reaches the server.
type Controller struct {
	client  API
	machine *Machine
	logger  *logging.Logger
}

// NewController creates a controller for m.
func NewController(client API, m *Machine, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{client: client, machine: m, logger: logger}
}

// Machine returns the controlled machine.
func (c *Controller) Machine() *Machine {
	return c.machine
}

// Load fetches job id and returns a controller for it.
func Load(ctx context.Context, client API, cred api.Credential, id string, logger *logging.Logger, opts ...Option) (*Controller, error) {
	sim, err := client.GetSimulation(ctx, cred, id)
	if err != nil {
		return nil, err
	}
	return NewController(client, NewMachine(*sim, opts...), logger), nil
}

// Start asks the server to run a draft job and marks it queued.
func (c *Controller) Start(ctx context.Context, cred api.Credential) error {
	if err := c.machine.Check(ActionStart); err != nil {
		return err
	}
	id, err := c.serverID()
	if err != nil {
		return err
	}

	if err := c.client.StartSimulation(ctx, cred, id); err != nil {
		return err
	}
	return c.machine.MarkSubmitted()
}

// Stop asks the server to cancel a queued or processing job, then re-reads it
// so the machine shows the server's view.
func (c *Controller) Stop(ctx context.Context, cred api.Credential) error {
	if err := c.machine.Check(ActionStop); err != nil {
		return err
	}
	id, err := c.serverID()
	if err != nil {
		return err
	}

	if err := c.client.StopSimulation(ctx, cred, id); err != nil {
		return err
	}

	if err := c.Refresh(ctx, cred); err != nil {
		c.logger.Debug().Err(err).Str("job_id", id).Msg("refresh after stop failed")
	}
	return nil
}

// Refresh fetches the latest snapshot and applies it.
func (c *Controller) Refresh(ctx context.Context, cred api.Credential) error {
	id, err := c.serverID()
	if err != nil {
		return err
	}

	sim, err := c.client.GetSimulation(ctx, cred, id)
	if err != nil {
		return err
	}
	c.machine.Apply(*sim)
	return nil
}

// Delete removes the job on the server.
func (c *Controller) Delete(ctx context.Context, cred api.Credential) error {
	id, err := c.serverID()
	if err != nil {
		return err
	}
	return c.client.DeleteSimulation(ctx, cred, id)
}

func (c *Controller) serverID() (string, error) {
	id := c.machine.ID()
	if id == "" {
		return "", fmt.Errorf("job has not been submitted yet")
	}
	return id, nil
}
