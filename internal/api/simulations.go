package api

import (
	"context"
	"fmt"
	"io"
	"mime"
	nethttp "net/http"
	"net/url"
	"strconv"

	"github.com/suqaba/suqaba-cli/internal/models"
)

// ListSimulations returns the caller's most recent simulations, newest first,
// exactly as the server orders and limits them.
func (c *Client) ListSimulations(ctx context.Context, cred Credential, limit int) ([]models.Simulation, error) {
	path := "/simulations"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var sims []models.Simulation
	err := c.doJSON(ctx, request{
		op:        "list simulations",
		method:    nethttp.MethodGet,
		path:      path,
		cred:      cred,
		protected: true,
	}, nil, &sims)
	if err != nil {
		return nil, err
	}
	if sims == nil {
		sims = []models.Simulation{}
	}
	return sims, nil
}

// GetSimulation retrieves one simulation snapshot.
func (c *Client) GetSimulation(ctx context.Context, cred Credential, id string) (*models.Simulation, error) {
	var sim models.Simulation
	err := c.doJSON(ctx, request{
		op:        "get simulation",
		method:    nethttp.MethodGet,
		path:      simulationPath(id, ""),
		cred:      cred,
		protected: true,
	}, nil, &sim)
	if err != nil {
		return nil, err
	}
	return &sim, nil
}

// CreateSimulation uploads form as multipart/form-data and returns the created
// simulation. The server assigns the id.
func (c *Client) CreateSimulation(ctx context.Context, cred Credential, form models.SimulationForm) (*models.Simulation, error) {
	if cred == nil || cred.BearerToken() == "" {
		return nil, ErrUnauthenticated
	}

	body, contentType, err := encodeSimulationForm(form)
	if err != nil {
		return nil, err
	}

	var out models.CreateSimulationResponse
	err = c.doJSON(ctx, request{
		op:          "create simulation",
		method:      nethttp.MethodPost,
		path:        "/simulations",
		cred:        cred,
		protected:   true,
		body:        body,
		contentType: contentType,
	}, nil, &out)
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("create simulation: server response has no id")
	}
	return &out.Simulation, nil
}

// StartSimulation asks the server to start a simulation.
func (c *Client) StartSimulation(ctx context.Context, cred Credential, id string) error {
	return c.doJSON(ctx, request{
		op:        "start simulation",
		method:    nethttp.MethodPost,
		path:      simulationPath(id, "start"),
		cred:      cred,
		protected: true,
	}, nil, nil)
}

// StopSimulation asks the server to cancel a queued or running simulation.
func (c *Client) StopSimulation(ctx context.Context, cred Credential, id string) error {
	return c.doJSON(ctx, request{
		op:        "stop simulation",
		method:    nethttp.MethodPost,
		path:      simulationPath(id, "stop"),
		cred:      cred,
		protected: true,
	}, nil, nil)
}

// DeleteSimulation removes a simulation.
func (c *Client) DeleteSimulation(ctx context.Context, cred Credential, id string) error {
	return c.doJSON(ctx, request{
		op:        "delete simulation",
		method:    nethttp.MethodDelete,
		path:      simulationPath(id, ""),
		cred:      cred,
		protected: true,
	}, nil, nil)
}

// ResultDownload is an open result archive stream. The caller must Close it.
type ResultDownload struct {
	Body          io.ReadCloser
	Filename      string // from Content-Disposition; unvalidated, may be empty
	ContentLength int64  // -1 when unknown
}

// Close closes the underlying body.
func (d *ResultDownload) Close() error {
	return d.Body.Close()
}

// DownloadResults opens the result archive of a completed simulation.
func (c *Client) DownloadResults(ctx context.Context, cred Credential, id string) (*ResultDownload, error) {
	resp, err := c.doRequest(ctx, request{
		op:        "download results",
		method:    nethttp.MethodGet,
		path:      simulationPath(id, "results"),
		cred:      cred,
		protected: true,
		download:  true,
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != nethttp.StatusOK {
		defer resp.Body.Close()
		return nil, errorFromResponse("download results", resp)
	}

	return &ResultDownload{
		Body:          resp.Body,
		Filename:      dispositionFilename(resp.Header.Get("Content-Disposition")),
		ContentLength: resp.ContentLength,
	}, nil
}

func simulationPath(id, action string) string {
	p := "/simulations/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
