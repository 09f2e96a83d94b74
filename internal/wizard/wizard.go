// Package wizard implements the three-step simulation submission flow:
// upload geometry, configure the analysis, review and submit.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/suqaba/suqaba-cli/internal/api"
	"github.com/suqaba/suqaba-cli/internal/constants"
	"github.com/suqaba/suqaba-cli/internal/events"
	"github.com/suqaba/suqaba-cli/internal/jobs"
	"github.com/suqaba/suqaba-cli/internal/logging"
	"github.com/suqaba/suqaba-cli/internal/models"
	"github.com/suqaba/suqaba-cli/internal/validation"
)

// Step is a wizard page.
type Step int

const (
	StepUpload Step = iota
	StepConfigure
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "Upload Geometry"
	case StepConfigure:
		return "Configure Analysis"
	case StepReview:
		return "Review & Submit"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

var (
	// ErrSubmitDiscarded is returned when the user left the review step or
	// cancelled the draft while the submission was in flight.
	ErrSubmitDiscarded = errors.New("submission result discarded: the wizard moved on")

	// ErrSubmitInProgress is returned by a second Submit while one is running.
	ErrSubmitInProgress = errors.New("a submission is already in progress")
)

// Submitter creates simulations on the server.
type Submitter interface {
	CreateSimulation(ctx context.Context, cred api.Credential, form models.SimulationForm) (*models.Simulation, error)
}

// Config holds the wizard's collaborators and limits.
type Config struct {
	// MaxUploadBytes caps the geometry file size; 0 means no limit.
	MaxUploadBytes int64
	// MinErrorThreshold raises lower thresholds at submit time; 0 disables it.
	MinErrorThreshold float64
	Store             DraftStore
	Logger            *logging.Logger
	Bus               *events.EventBus
	JobOptions        []jobs.Option
}

// Wizard is safe for concurrent use.
type Wizard struct {
	client Submitter
	cfg    Config
	logger *logging.Logger

	mu         sync.Mutex
	step       Step
	draft      Draft
	generation uint64
	submitting bool
}

// New creates a wizard on the first step with an empty draft.
func New(client Submitter, cfg Config) *Wizard {
	if cfg.Store == nil {
		cfg.Store = NewMemoryDraftStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Wizard{
		client: client,
		cfg:    cfg,
		logger: logger,
		draft:  NewDraft(),
	}
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Draft returns a copy of the current draft.
func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// Submitting reports whether a submission is in flight.
func (w *Wizard) Submitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting
}

// Advance moves to the next step. Leaving the upload step requires a
// geometry file. On failure the step is unchanged.
func (w *Wizard) Advance() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.step {
	case StepUpload:
		if w.draft.GeometryPath == "" {
			return &api.ValidationError{Field: "geometry", Step: int(StepUpload), Message: "select a geometry file to continue"}
		}
	case StepReview:
		return &api.ValidationError{Step: int(StepReview), Message: "already on the last step"}
	}

	w.step++
	return nil
}

// Retreat moves to the previous step.
func (w *Wizard) Retreat() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step == StepUpload {
		return &api.ValidationError{Step: int(StepUpload), Message: "already on the first step"}
	}
	w.step--
	return nil
}

// SetField stores value as typed; it is validated at submit.
func (w *Wizard) SetField(f Field, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.draft.set(f, value) {
		return api.NewValidationError(string(f), "unknown field")
	}
	w.touchLocked()
	return nil
}

// touchLocked marks the draft as edited. An edit made while a submission is
// in flight means the result no longer matches the draft.
func (w *Wizard) touchLocked() {
	if w.submitting {
		w.generation++
	}
}

// SelectFile sets the geometry file after checking its extension and size.
// A rejected file leaves the draft unchanged.
func (w *Wizard) SelectFile(path string) error {
	size, err := validation.ValidateGeometryFile(path, w.cfg.MaxUploadBytes)
	if err != nil {
		return &api.ValidationError{Field: "geometry", Step: int(StepUpload), Message: err.Error()}
	}

	w.mu.Lock()
	w.draft.GeometryPath = path
	w.draft.GeometrySize = size
	w.touchLocked()
	w.mu.Unlock()
	return nil
}

// ClearFile removes the selected geometry file.
func (w *Wizard) ClearFile() {
	w.mu.Lock()
	w.draft.GeometryPath = ""
	w.draft.GeometrySize = 0
	w.touchLocked()
	w.mu.Unlock()
}

// Cancel discards the draft and returns to the first step. A submission in
// flight will be discarded when it completes.
func (w *Wizard) Cancel() {
	w.mu.Lock()
	w.resetLocked()
	w.mu.Unlock()
}

func (w *Wizard) resetLocked() {
	w.draft = NewDraft()
	w.step = StepUpload
	w.generation++
}

// SaveDraft hands a copy of the draft to the draft store. Saving an unchanged
// draft again stores the same value.
func (w *Wizard) SaveDraft(ctx context.Context) error {
	d := w.Draft()
	if err := w.cfg.Store.Save(ctx, d); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	w.logger.Debug().Str("name", d.Name).Msg("draft saved")
	return nil
}

// ResumeDraft replaces the current draft with the saved one, if any, and
// returns to the first step. A saved geometry file that no longer passes the
// upload checks is dropped from the draft.
func (w *Wizard) ResumeDraft(ctx context.Context) (bool, error) {
	d, ok, err := w.cfg.Store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load draft: %w", err)
	}
	if !ok {
		return false, nil
	}

	if d.GeometryPath != "" {
		size, err := validation.ValidateGeometryFile(d.GeometryPath, w.cfg.MaxUploadBytes)
		if err != nil {
			w.logger.Warn().Err(err).Str("path", d.GeometryPath).Msg("saved geometry file is no longer usable, select it again")
			d.GeometryPath = ""
			d.GeometrySize = 0
		} else {
			d.GeometrySize = size
		}
	}

	w.mu.Lock()
	w.resetLocked()
	w.draft = d
	w.mu.Unlock()
	return true, nil
}

// buildForm validates the draft and converts it to the submission payload.
func (w *Wizard) buildForm(d Draft) (models.SimulationForm, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return models.SimulationForm{}, &api.ValidationError{Field: string(FieldName), Step: int(StepConfigure), Message: "name is required"}
	}

	if d.GeometryPath == "" {
		return models.SimulationForm{}, &api.ValidationError{Field: "geometry", Step: int(StepUpload), Message: "a geometry file is required"}
	}
	if _, err := validation.ValidateGeometryFile(d.GeometryPath, w.cfg.MaxUploadBytes); err != nil {
		return models.SimulationForm{}, &api.ValidationError{Field: "geometry", Step: int(StepUpload), Message: err.Error()}
	}

	analysis := models.AnalysisType(strings.ToLower(strings.TrimSpace(d.AnalysisType)))
	if !analysis.Valid() {
		return models.SimulationForm{}, &api.ValidationError{Field: string(FieldAnalysisType), Step: int(StepConfigure),
			Message: fmt.Sprintf("must be one of static, dynamic, thermal (got %q)", d.AnalysisType)}
	}

	threshold, err := strconv.ParseFloat(strings.TrimSpace(d.ErrorThreshold), 64)
	if err != nil || threshold <= 0 || threshold > constants.MaxErrorThreshold {
		return models.SimulationForm{}, &api.ValidationError{Field: string(FieldErrorThreshold), Step: int(StepConfigure),
			Message: fmt.Sprintf("must be a number greater than 0 and at most 100 (got %q)", d.ErrorThreshold)}
	}

	if floor := w.cfg.MinErrorThreshold; floor > 0 && threshold < floor {
		w.logger.Warn().Float64("requested", threshold).Float64("minimum", floor).
			Msg("error threshold below the configured minimum, using the minimum")
		threshold = floor
	}

	return models.SimulationForm{
		Name:               name,
		Description:        d.Description,
		AnalysisType:       analysis,
		ErrorThreshold:     threshold,
		Materials:          d.Materials,
		BoundaryConditions: d.BoundaryConditions,
		GeometryPath:       d.GeometryPath,
	}, nil
}

// Submit validates the draft and creates the simulation.
//
// Once dispatched the request runs to completion even if ctx is cancelled.
// Its result is used only if the wizard is still on the review step with the
// same draft; otherwise ErrSubmitDiscarded is returned. On success the wizard
// is reset and the returned machine is queued. On failure the draft is kept.
func (w *Wizard) Submit(ctx context.Context, cred api.Credential) (*jobs.Machine, error) {
	if cred == nil || cred.BearerToken() == "" {
		return nil, api.ErrUnauthenticated
	}

	w.mu.Lock()
	if w.step != StepReview {
		step := w.step
		w.mu.Unlock()
		return nil, &api.ValidationError{Step: int(step), Message: "submit is only available on the review step"}
	}
	if w.submitting {
		w.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	form, err := w.buildForm(w.draft)
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	gen := w.generation
	w.submitting = true
	w.mu.Unlock()

	sim, err := w.client.CreateSimulation(context.WithoutCancel(ctx), cred, form)

	w.mu.Lock()
	w.submitting = false
	if w.step != StepReview || w.generation != gen {
		reason := "wizard left the review step"
		if w.step == StepReview {
			reason = "draft changed during submission"
		}
		w.mu.Unlock()

		id := ""
		if sim != nil {
			id = sim.ID
		}
		w.logger.Info().Str("job_id", id).AnErr("submit_error", err).Msg("discarding submission result: " + reason)
		w.cfg.Bus.PublishSubmitDiscarded(id, reason)
		return nil, ErrSubmitDiscarded
	}
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	w.resetLocked()
	w.mu.Unlock()

	if err := w.cfg.Store.Clear(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("failed to clear saved draft")
	}

	created := *sim
	if created.Name == "" {
		created.Name = form.Name
	}
	if created.AnalysisType == "" {
		created.AnalysisType = form.AnalysisType
	}
	if created.ErrorThreshold == 0 {
		created.ErrorThreshold = form.ErrorThreshold
	}

	m := jobs.NewSubmitted(created, w.cfg.JobOptions...)
	w.cfg.Bus.PublishJobStatus(created.ID, created.Name, string(models.StatusDraft), string(models.StatusQueued))
	w.logger.Info().Str("job_id", created.ID).Str("name", created.Name).Msg("simulation submitted")
	return m, nil
}
