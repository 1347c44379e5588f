package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/solvetheriddle/fermentlog/internal/model"
)

const batchColumns = `id, name, status, phase, start_date, vessel_id,
	primary_ingredients, secondary_ingredients, parent_id, image_mime IS NOT NULL`

type rowScanner interface {
	Scan(dest ...any) error
}

// errMalformed marks a stored batch row that could not be decoded.
var errMalformed = errors.New("malformed batch record")

func scanBatch(row rowScanner) (model.Batch, error) {
	var b model.Batch
	var startDate, primary, secondary string
	var parentID sql.NullString
	if err := row.Scan(&b.ID, &b.Name, &b.Status, &b.Phase, &startDate, &b.VesselID,
		&primary, &secondary, &parentID, &b.HasImage); err != nil {
		return b, err
	}
	b.ParentID = parentID.String

	var err error
	if b.StartDate, err = model.ParseDate(startDate); err != nil {
		return b, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if err := json.Unmarshal([]byte(primary), &b.PrimaryIngredients); err != nil {
		return b, fmt.Errorf("%w: primary ingredients: %v", errMalformed, err)
	}
	if err := json.Unmarshal([]byte(secondary), &b.SecondaryIngredients); err != nil {
		return b, fmt.Errorf("%w: secondary ingredients: %v", errMalformed, err)
	}
	if !model.ValidStatus(b.Status) || !model.ValidPhase(b.Phase) {
		return b, fmt.Errorf("%w: status %q phase %q", errMalformed, b.Status, b.Phase)
	}
	if b.PrimaryIngredients == nil {
		b.PrimaryIngredients = []model.IngredientAmount{}
	}
	if b.SecondaryIngredients == nil {
		b.SecondaryIngredients = []model.IngredientAmount{}
	}
	return b, nil
}

func encodeAmounts(amounts []model.IngredientAmount) (string, error) {
	normalized := make([]model.IngredientAmount, len(amounts))
	for i, a := range amounts {
		a.Name = strings.TrimSpace(a.Name)
		a.Amount = strings.TrimSpace(a.Amount)
		normalized[i] = a
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("encoding ingredient amounts: %w", err)
	}
	return string(data), nil
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// checkBatchRefs verifies that the batch's vessel exists in the user's
// namespace, and its parent too when checkParent is set.
func checkBatchRefs(ctx context.Context, q queryRower, userID string, b *model.Batch, checkParent bool) error {
	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vessels WHERE user_id = ? AND id = ?`,
		userID, b.VesselID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking vessel: %w", err)
	}
	if exists == 0 {
		return invalid(fmt.Errorf("unknown vessel %s", b.VesselID))
	}

	if checkParent && b.ParentID != "" {
		err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM batches WHERE user_id = ? AND id = ?`,
			userID, b.ParentID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking parent batch: %w", err)
		}
		if exists == 0 {
			return invalid(fmt.Errorf("unknown parent batch %s", b.ParentID))
		}
	}
	return nil
}

// CreateBatch stores a new batch. Missing status, phase and start date take
// their defaults; an empty ID is replaced with a generated one.
func CreateBatch(ctx context.Context, db *sql.DB, userID string, b model.Batch, today model.Date) (*model.Batch, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Name = strings.TrimSpace(b.Name)
	b.ApplyDefaults(today)
	if err := b.Validate(); err != nil {
		return nil, invalid(err)
	}

	primary, err := encodeAmounts(b.PrimaryIngredients)
	if err != nil {
		return nil, err
	}
	secondary, err := encodeAmounts(b.SecondaryIngredients)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkBatchRefs(ctx, tx, userID, &b, true); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (user_id, id, name, status, phase, start_date, vessel_id,
		                      primary_ingredients, secondary_ingredients, parent_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, b.ID, b.Name, b.Status, b.Phase, b.StartDate.String(), b.VesselID,
		primary, secondary, nullString(b.ParentID),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("creating batch %s: %w", b.ID, ErrConflict)
		}
		return nil, fmt.Errorf("creating batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing batch: %w", err)
	}

	return GetBatch(ctx, db, userID, b.ID)
}

// GetBatch returns a batch by ID, or nil if it does not exist.
func GetBatch(ctx context.Context, db *sql.DB, userID, id string) (*model.Batch, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE user_id = ? AND id = ?`,
		userID, id,
	)
	b, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}
	return &b, nil
}

// ListBatches returns the user's batches, optionally filtered by status,
// ordered by start date. Rows that cannot be decoded are skipped with a
// warning.
func ListBatches(ctx context.Context, db *sql.DB, userID, status string) ([]model.Batch, error) {
	var rows *sql.Rows
	var err error

	if status != "" {
		rows, err = db.QueryContext(ctx,
			`SELECT `+batchColumns+` FROM batches
			 WHERE user_id = ? AND status = ? ORDER BY start_date, id`,
			userID, status,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT `+batchColumns+` FROM batches
			 WHERE user_id = ? ORDER BY start_date, id`,
			userID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	defer rows.Close()

	batches := []model.Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if errors.Is(err, errMalformed) {
			slog.Warn("skipping malformed batch", "user", userID, "batch", b.ID, "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// UpdateBatch replaces every editable field of an existing batch. The parent
// is only checked when it changes, so a batch whose parent was deleted can
// still be edited.
func UpdateBatch(ctx context.Context, db *sql.DB, userID string, b model.Batch) error {
	b.Name = strings.TrimSpace(b.Name)
	if err := b.Validate(); err != nil {
		return invalid(err)
	}

	primary, err := encodeAmounts(b.PrimaryIngredients)
	if err != nil {
		return err
	}
	secondary, err := encodeAmounts(b.SecondaryIngredients)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var storedParent sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT parent_id FROM batches WHERE user_id = ? AND id = ?`,
		userID, b.ID,
	).Scan(&storedParent)
	if err == sql.ErrNoRows {
		return fmt.Errorf("batch %s: %w", b.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("getting batch parent: %w", err)
	}
	if err := checkBatchRefs(ctx, tx, userID, &b, b.ParentID != storedParent.String); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE batches SET name = ?, status = ?, phase = ?, start_date = ?, vessel_id = ?,
		        primary_ingredients = ?, secondary_ingredients = ?, parent_id = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND id = ?`,
		b.Name, b.Status, b.Phase, b.StartDate.String(), b.VesselID,
		primary, secondary, nullString(b.ParentID),
		userID, b.ID,
	)
	if err != nil {
		return fmt.Errorf("updating batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch update: %w", err)
	}
	return nil
}

// DeleteBatch removes a batch. Deleting a missing batch is not an error.
func DeleteBatch(ctx context.Context, db *sql.DB, userID, id string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM batches WHERE user_id = ? AND id = ?`,
		userID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting batch: %w", err)
	}
	return nil
}

// SetBatchImage sets a batch's photo.
func SetBatchImage(ctx context.Context, db *sql.DB, userID, id string, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE batches SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND id = ?`,
		image, mime, userID, id,
	)
	if err != nil {
		return fmt.Errorf("setting batch image: %w", err)
	}
	return requireAffected(result, "batch", id)
}

// GetBatchImage returns a batch's photo and MIME type. Both are empty when
// the batch has no photo.
func GetBatchImage(ctx context.Context, db *sql.DB, userID, id string) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM batches WHERE user_id = ? AND id = ?`,
		userID, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting batch image: %w", err)
	}
	return image, mime.String, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
