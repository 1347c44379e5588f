package watch

import (
	"log/slog"

	"github.com/solvetheriddle/fermentlog/internal/model"
)

// JoinBatches attaches each batch's vessel and brew duration. Batches whose
// vessel cannot be found are dropped with a warning.
func JoinBatches(batches []model.Batch, vessels []model.Vessel, today model.Date) []model.Batch {
	byID := make(map[string]*model.Vessel, len(vessels))
	for i := range vessels {
		byID[vessels[i].ID] = &vessels[i]
	}

	joined := make([]model.Batch, 0, len(batches))
	for _, b := range batches {
		v, ok := byID[b.VesselID]
		if !ok {
			slog.Warn("dropping batch with unknown vessel", "batch", b.ID, "vessel", b.VesselID)
			continue
		}
		vessel := *v
		b.Vessel = &vessel
		b.BrewDurationDays = b.BrewDuration(today)
		joined = append(joined, b)
	}
	return joined
}

// FilterStatus returns the batches with the given status, keeping order.
func FilterStatus(batches []model.Batch, status string) []model.Batch {
	out := make([]model.Batch, 0, len(batches))
	for _, b := range batches {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out
}
