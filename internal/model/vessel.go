package model

import (
	"errors"
	"math"
	"strings"
)

// Vessel is a reusable fermentation container.
type Vessel struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Capacity *float64 `json:"capacity,omitempty"` // liters
}

// Validate checks the user-editable fields of a vessel.
func (v *Vessel) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return errors.New("vessel name required")
	}
	if v.Capacity != nil {
		c := *v.Capacity
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.New("vessel capacity must be a finite number")
		}
		if c <= 0 {
			return errors.New("vessel capacity must be positive")
		}
	}
	return nil
}
