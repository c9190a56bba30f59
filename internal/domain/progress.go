package domain

import (
	"errors"
	"time"
)

// Lifecycle errors surfaced to callers of the simulation service.
var (
	// ErrInvalidSimulation is returned when creation parameters fail validation.
	ErrInvalidSimulation = errors.New("invalid simulation configuration")

	// ErrStateConflict is returned when a start/delete is requested against an ineligible status.
	ErrStateConflict = errors.New("simulation state conflict")

	// ErrForbidden is returned when the caller does not own the simulation.
	ErrForbidden = errors.New("simulation not owned by caller")

	// ErrNoResults is returned by metrics reads when no snapshot exists yet.
	ErrNoResults = errors.New("no results yet")
)

// ProgressSample is the ephemeral live-progress record of a running simulation.
type ProgressSample struct {
	Progress     float64 // 0-100
	CurrentPrice float64
}

// Progress is the poller view of a simulation.
type Progress struct {
	SimulationID string
	Status       SimulationStatus
	Progress     float64 // 0-100
	CurrentPrice *float64
	StartedAt    *time.Time
	CompletedAt  *time.Time
}
