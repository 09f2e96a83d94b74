// Package models defines data structures exchanged with the Suqaba API.
package models

import "time"

// Status is the lifecycle state of a simulation job as reported by the server.
// Values outside the known set are preserved verbatim so they can be displayed.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses lists every known status in lifecycle order.
var AllStatuses = []Status{
	StatusDraft,
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// Known reports whether s is one of the six lifecycle states.
func (s Status) Known() bool {
	switch s {
	case StatusDraft, StatusQueued, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// AnalysisType selects the solver physics.
type AnalysisType string

const (
	AnalysisStatic  AnalysisType = "static"
	AnalysisDynamic AnalysisType = "dynamic"
	AnalysisThermal AnalysisType = "thermal"
)

// Valid reports whether a is a supported analysis type.
func (a AnalysisType) Valid() bool {
	switch a {
	case AnalysisStatic, AnalysisDynamic, AnalysisThermal:
		return true
	default:
		return false
	}
}

// Simulation represents one analysis request as returned by the API.
//
// Optional fields are pointers so that "not reported" can be told apart from zero.
type Simulation struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Description        string       `json:"description,omitempty"`
	AnalysisType       AnalysisType `json:"analysisType"`
	ErrorThreshold     float64      `json:"errorThreshold"`
	Materials          string       `json:"materials,omitempty"`
	BoundaryConditions string       `json:"boundaryConditions,omitempty"`
	GeometryFile       string       `json:"geometryFile,omitempty"`
	Status             Status       `json:"status"`
	QualityOracle      *float64     `json:"qualityOracle,omitempty"`
	MeshNodes          *int         `json:"meshNodes,omitempty"`
	MeshElements       *int         `json:"meshElements,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
	StartedAt          *time.Time   `json:"startedAt,omitempty"`
	CompletedAt        *time.Time   `json:"completedAt,omitempty"`
	ExternalJobID      string       `json:"externalJobId,omitempty"`
}

// CreateSimulationResponse is the body returned by POST /simulations.
// Only the id is relied on; the rest is decoded when the server sends it.
type CreateSimulationResponse struct {
	Simulation
}

// SimulationForm holds the fields sent as multipart/form-data to POST /simulations.
// GeometryPath is a local file; empty means no geometry part is sent.
type SimulationForm struct {
	Name               string
	Description        string
	AnalysisType       AnalysisType
	ErrorThreshold     float64
	Materials          string
	BoundaryConditions string
	GeometryPath       string
}
