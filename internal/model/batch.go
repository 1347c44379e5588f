package model

import (
	"errors"
	"fmt"
	"strings"
)

// Batch statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Brewing phases.
const (
	PhasePrimary   = "primary"
	PhaseSecondary = "secondary"
)

// Batch is one fermentation run.
type Batch struct {
	ID                   string             `json:"id"`
	Name                 string             `json:"name,omitempty"`
	Status               string             `json:"status"`
	Phase                string             `json:"phase"`
	StartDate            Date               `json:"start_date"`
	VesselID             string             `json:"vessel_id"`
	PrimaryIngredients   []IngredientAmount `json:"primary_ingredients"`
	SecondaryIngredients []IngredientAmount `json:"secondary_ingredients"`
	ParentID             string             `json:"parent_id,omitempty"`
	HasImage             bool               `json:"has_image"`

	// Populated by the batch join, never stored.
	Vessel           *Vessel `json:"vessel,omitempty"`
	BrewDurationDays int     `json:"brew_duration_days"`
}

// ValidStatus reports whether s is a known batch status.
func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusCompleted
}

// ValidPhase reports whether p is a known brewing phase.
func ValidPhase(p string) bool {
	return p == PhasePrimary || p == PhaseSecondary
}

// ApplyDefaults fills in status, phase and start date for a new batch.
func (b *Batch) ApplyDefaults(today Date) {
	if b.Status == "" {
		b.Status = StatusActive
	}
	if b.Phase == "" {
		b.Phase = PhasePrimary
	}
	if b.StartDate.IsZero() {
		b.StartDate = today
	}
	if b.PrimaryIngredients == nil {
		b.PrimaryIngredients = []IngredientAmount{}
	}
	if b.SecondaryIngredients == nil {
		b.SecondaryIngredients = []IngredientAmount{}
	}
}

// Validate checks a batch before it is written.
func (b *Batch) Validate() error {
	if b.ID == "" {
		return errors.New("batch id required")
	}
	if !ValidStatus(b.Status) {
		return fmt.Errorf("invalid status %q", b.Status)
	}
	if !ValidPhase(b.Phase) {
		return fmt.Errorf("invalid phase %q", b.Phase)
	}
	if b.StartDate.IsZero() {
		return errors.New("start date required")
	}
	if b.VesselID == "" {
		return errors.New("vessel required")
	}
	if b.ParentID != "" && b.ParentID == b.ID {
		return errors.New("batch cannot be its own parent")
	}
	return nil
}

// DisplayName returns the batch name, or "<vessel name> (<DD> <Month>)" when
// the name is blank.
func (b *Batch) DisplayName() string {
	if strings.TrimSpace(b.Name) != "" {
		return b.Name
	}
	vesselName := ""
	if b.Vessel != nil {
		vesselName = b.Vessel.Name
	}
	return fmt.Sprintf("%s (%s)", vesselName, b.StartDate.Time().Format("02 January"))
}

// BrewDuration returns the whole days elapsed between the start date and
// today. A start date of today or later yields 0.
func (b *Batch) BrewDuration(today Date) int {
	days := b.StartDate.DaysUntil(today)
	if days < 0 {
		return 0
	}
	return days
}
