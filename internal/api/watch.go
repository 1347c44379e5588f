package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/solvetheriddle/fermentlog/internal/model"
	"github.com/solvetheriddle/fermentlog/internal/sse"
	"github.com/solvetheriddle/fermentlog/internal/watch"
)

// WatchHandler streams collection snapshots as Server-Sent Events.
type WatchHandler struct {
	Repo *watch.Repository
}

// Stream handles GET /api/watch/{collection}. Each emission is sent as a
// "snapshot" event whose data is the full JSON list.
func (h *WatchHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetClaims(ctx).UserID
	collection := r.PathValue("collection")

	switch collection {
	case watch.Batches, watch.Vessels, watch.Ingredients:
	default:
		jsonError(w, http.StatusNotFound, "unknown collection")
		return
	}

	stream, err := sse.NewWriter(w)
	if err != nil {
		slog.Error("opening event stream", "error", err)
		return
	}

	switch collection {
	case watch.Batches:
		err = sse.Pump(ctx, stream, "snapshot", h.Repo.WatchBatches(ctx, userID), encodeJSON[[]model.Batch])
	case watch.Vessels:
		err = sse.Pump(ctx, stream, "snapshot", h.Repo.WatchVessels(ctx, userID), encodeJSON[[]model.Vessel])
	case watch.Ingredients:
		err = sse.Pump(ctx, stream, "snapshot", h.Repo.WatchIngredients(ctx, userID), encodeJSON[[]model.Ingredient])
	}
	if err != nil && ctx.Err() == nil {
		slog.Warn("event stream ended", "collection", collection, "error", err)
	}
}

func encodeJSON[T any](v T) ([]byte, error) {
	return json.Marshal(v)
}
