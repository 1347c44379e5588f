package watch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solvetheriddle/fermentlog/internal/metrics"
	"github.com/solvetheriddle/fermentlog/internal/model"
	"github.com/solvetheriddle/fermentlog/internal/store"
)

// ErrPhaseFinal is returned when advancing a batch already in its last phase.
var ErrPhaseFinal = errors.New("batch is already in its final phase")

// Repository is the data-access layer used by the API and the web UI.
// Reads and writes go to the store; successful writes are published on the
// notifier so open watch streams refresh.
type Repository struct {
	DB       *sql.DB
	Notifier *Notifier

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewRepository creates a repository with its own notifier.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db, Notifier: NewNotifier()}
}

// Today returns the current calendar date in local time.
func (r *Repository) Today() model.Date {
	if r.Now != nil {
		return model.DateOf(r.Now())
	}
	return model.Today()
}

// written publishes a change or counts a failure.
func (r *Repository) written(userID, collection string, err error) error {
	if err != nil {
		metrics.RecordWriteFailure(collection)
		return err
	}
	r.Notifier.Publish(userID, collection)
	return nil
}

// Batches returns the user's batches joined with their vessels, optionally
// filtered by status.
func (r *Repository) Batches(ctx context.Context, userID, status string) ([]model.Batch, error) {
	batches, err := store.ListBatches(ctx, r.DB, userID, status)
	if err != nil {
		return nil, err
	}
	vessels, err := store.ListVessels(ctx, r.DB, userID)
	if err != nil {
		return nil, err
	}
	return JoinBatches(batches, vessels, r.Today()), nil
}

// Batch returns one batch with its vessel and brew duration attached, or nil
// if it does not exist. Unlike the list, a missing vessel leaves Vessel nil
// instead of hiding the batch.
func (r *Repository) Batch(ctx context.Context, userID, id string) (*model.Batch, error) {
	b, err := store.GetBatch(ctx, r.DB, userID, id)
	if err != nil || b == nil {
		return nil, err
	}
	vessel, err := store.GetVessel(ctx, r.DB, userID, b.VesselID)
	if err != nil {
		return nil, err
	}
	b.Vessel = vessel
	b.BrewDurationDays = b.BrewDuration(r.Today())
	return b, nil
}

// AddBatch creates a batch.
func (r *Repository) AddBatch(ctx context.Context, userID string, b model.Batch) (*model.Batch, error) {
	created, err := store.CreateBatch(ctx, r.DB, userID, b, r.Today())
	if err := r.written(userID, Batches, err); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateBatch replaces a batch.
func (r *Repository) UpdateBatch(ctx context.Context, userID string, b model.Batch) error {
	return r.written(userID, Batches, store.UpdateBatch(ctx, r.DB, userID, b))
}

// DeleteBatch removes a batch.
func (r *Repository) DeleteBatch(ctx context.Context, userID, id string) error {
	return r.written(userID, Batches, store.DeleteBatch(ctx, r.DB, userID, id))
}

// CompleteBatch marks a batch completed.
func (r *Repository) CompleteBatch(ctx context.Context, userID, id string) (*model.Batch, error) {
	return r.modifyBatch(ctx, userID, id, func(b *model.Batch) error {
		b.Status = model.StatusCompleted
		return nil
	})
}

// AdvancePhase moves a batch from primary to secondary fermentation.
func (r *Repository) AdvancePhase(ctx context.Context, userID, id string) (*model.Batch, error) {
	return r.modifyBatch(ctx, userID, id, func(b *model.Batch) error {
		if b.Phase != model.PhasePrimary {
			return ErrPhaseFinal
		}
		b.Phase = model.PhaseSecondary
		return nil
	})
}

func (r *Repository) modifyBatch(ctx context.Context, userID, id string, fn func(*model.Batch) error) (*model.Batch, error) {
	b, err := store.GetBatch(ctx, r.DB, userID, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("batch %s: %w", id, store.ErrNotFound)
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	if err := r.UpdateBatch(ctx, userID, *b); err != nil {
		return nil, err
	}
	return r.Batch(ctx, userID, id)
}

// SetBatchImage stores a batch photo.
func (r *Repository) SetBatchImage(ctx context.Context, userID, id string, data []byte, mime string) error {
	return r.written(userID, Batches, store.SetBatchImage(ctx, r.DB, userID, id, data, mime))
}

// Vessels returns the user's vessels.
func (r *Repository) Vessels(ctx context.Context, userID string) ([]model.Vessel, error) {
	return store.ListVessels(ctx, r.DB, userID)
}

// Vessel returns one vessel, or nil if it does not exist.
func (r *Repository) Vessel(ctx context.Context, userID, id string) (*model.Vessel, error) {
	return store.GetVessel(ctx, r.DB, userID, id)
}

// AddVessel creates a vessel.
func (r *Repository) AddVessel(ctx context.Context, userID string, v model.Vessel) (*model.Vessel, error) {
	created, err := store.CreateVessel(ctx, r.DB, userID, v)
	if err := r.written(userID, Vessels, err); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateVessel replaces a vessel.
func (r *Repository) UpdateVessel(ctx context.Context, userID string, v model.Vessel) error {
	return r.written(userID, Vessels, store.UpdateVessel(ctx, r.DB, userID, v))
}

// DeleteVessel removes a vessel that no active batch uses.
func (r *Repository) DeleteVessel(ctx context.Context, userID, id string) error {
	return r.written(userID, Vessels, store.DeleteVessel(ctx, r.DB, userID, id))
}

// Ingredients returns the user's ingredients.
func (r *Repository) Ingredients(ctx context.Context, userID string) ([]model.Ingredient, error) {
	return store.ListIngredients(ctx, r.DB, userID)
}

// Ingredient returns one ingredient, or nil if it does not exist.
func (r *Repository) Ingredient(ctx context.Context, userID, id string) (*model.Ingredient, error) {
	return store.GetIngredient(ctx, r.DB, userID, id)
}

// AddIngredient creates an ingredient.
func (r *Repository) AddIngredient(ctx context.Context, userID string, i model.Ingredient) (*model.Ingredient, error) {
	created, err := store.CreateIngredient(ctx, r.DB, userID, i)
	if err := r.written(userID, Ingredients, err); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateIngredient replaces an ingredient.
func (r *Repository) UpdateIngredient(ctx context.Context, userID string, i model.Ingredient) error {
	return r.written(userID, Ingredients, store.UpdateIngredient(ctx, r.DB, userID, i))
}

// DeleteIngredient removes an ingredient.
func (r *Repository) DeleteIngredient(ctx context.Context, userID, id string) error {
	return r.written(userID, Ingredients, store.DeleteIngredient(ctx, r.DB, userID, id))
}

// WatchBatches streams the user's joined batch list. The first snapshot is
// sent right away and a new one after every change to batches or vessels.
// The channel is closed when ctx is done.
func (r *Repository) WatchBatches(ctx context.Context, userID string) <-chan []model.Batch {
	return watch(ctx, r.Notifier, userID, Batches, func(ctx context.Context) ([]model.Batch, error) {
		return r.Batches(ctx, userID, "")
	}, Batches, Vessels)
}

// WatchVessels streams the user's vessel list.
func (r *Repository) WatchVessels(ctx context.Context, userID string) <-chan []model.Vessel {
	return watch(ctx, r.Notifier, userID, Vessels, func(ctx context.Context) ([]model.Vessel, error) {
		return r.Vessels(ctx, userID)
	}, Vessels)
}

// WatchIngredients streams the user's ingredient list.
func (r *Repository) WatchIngredients(ctx context.Context, userID string) <-chan []model.Ingredient {
	return watch(ctx, r.Notifier, userID, Ingredients, func(ctx context.Context) ([]model.Ingredient, error) {
		return r.Ingredients(ctx, userID)
	}, Ingredients)
}

// watch runs the refresh loop behind a watch stream. A consumer that falls
// behind only ever receives the latest snapshot. A failed read is logged and
// the stream waits for the next change.
func watch[T any](ctx context.Context, n *Notifier, userID, name string,
	load func(context.Context) (T, error), collections ...string) <-chan T {

	out := make(chan T)
	changes, cancel := n.Subscribe(userID, collections...)

	go func() {
		defer close(out)
		defer cancel()
		defer metrics.WatchStarted(name)()

		var pending T
		ready := false
		refresh := func() {
			v, err := load(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("refreshing watch", "collection", name, "user", userID, "error", err)
				}
				return
			}
			pending, ready = v, true
		}

		refresh()
		for {
			var send chan<- T
			if ready {
				send = out
			}
			select {
			case <-ctx.Done():
				return
			case <-changes:
				refresh()
			case send <- pending:
				ready = false
			}
		}
	}()

	return out
}
