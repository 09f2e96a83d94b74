package wizard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/suqaba/suqaba-cli/internal/constants"
	"github.com/suqaba/suqaba-cli/internal/models"
)

// Field names a draft field settable with SetField.
type Field string

const (
	FieldName               Field = "name"
	FieldDescription        Field = "description"
	FieldAnalysisType       Field = "analysisType"
	FieldErrorThreshold     Field = "errorThreshold"
	FieldMaterials          Field = "materials"
	FieldBoundaryConditions Field = "boundaryConditions"
)

// Fields lists every settable field.
var Fields = []Field{
	FieldName,
	FieldDescription,
	FieldAnalysisType,
	FieldErrorThreshold,
	FieldMaterials,
	FieldBoundaryConditions,
}

// Draft is the in-progress simulation. Values are kept as typed by the user
// and only checked at submit.
type Draft struct {
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	AnalysisType       string `json:"analysisType"`
	ErrorThreshold     string `json:"errorThreshold"`
	Materials          string `json:"materials,omitempty"`
	BoundaryConditions string `json:"boundaryConditions,omitempty"`
	GeometryPath       string `json:"geometryPath,omitempty"`
	GeometrySize       int64  `json:"geometrySize,omitempty"`
}

// NewDraft returns an empty draft with the default analysis settings.
func NewDraft() Draft {
	return Draft{
		AnalysisType:   string(models.AnalysisStatic),
		ErrorThreshold: strconv.FormatFloat(constants.DefaultErrorThreshold, 'f', -1, 64),
	}
}

func (d *Draft) set(f Field, value string) bool {
	switch f {
	case FieldName:
		d.Name = value
	case FieldDescription:
		d.Description = value
	case FieldAnalysisType:
		d.AnalysisType = value
	case FieldErrorThreshold:
		d.ErrorThreshold = value
	case FieldMaterials:
		d.Materials = value
	case FieldBoundaryConditions:
		d.BoundaryConditions = value
	default:
		return false
	}
	return true
}

// Get returns the value of field f.
func (d Draft) Get(f Field) string {
	switch f {
	case FieldName:
		return d.Name
	case FieldDescription:
		return d.Description
	case FieldAnalysisType:
		return d.AnalysisType
	case FieldErrorThreshold:
		return d.ErrorThreshold
	case FieldMaterials:
		return d.Materials
	case FieldBoundaryConditions:
		return d.BoundaryConditions
	}
	return ""
}

// ParseField maps a user-supplied name to a Field, ignoring case.
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if strings.EqualFold(string(f), name) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", name)
}

// DraftStore keeps a saved copy of the draft.
type DraftStore interface {
	Save(ctx context.Context, d Draft) error
	Load(ctx context.Context) (Draft, bool, error)
	Clear(ctx context.Context) error
}

// MemoryDraftStore is the default DraftStore. It holds one draft for the
// lifetime of the process.
type MemoryDraftStore struct {
	mu    sync.Mutex
	draft Draft
	ok    bool
	saves int
}

// NewMemoryDraftStore returns an empty store.
func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{}
}

func (s *MemoryDraftStore) Save(ctx context.Context, d Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = d
	s.ok = true
	s.saves++
	return nil
}

func (s *MemoryDraftStore) Load(ctx context.Context) (Draft, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft, s.ok, nil
}

func (s *MemoryDraftStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = Draft{}
	s.ok = false
	return nil
}

// Saves returns how many times Save was called.
func (s *MemoryDraftStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
