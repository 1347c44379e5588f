package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/solvetheriddle/fermentlog/internal/model"
)

func TestCreateAndGetVessel(t *testing.T) {
	database, user := setupStoreTest(t)
	ctx := context.Background()

	capacity := 5.0
	vessel, err := CreateVessel(ctx, database, user.ID, model.Vessel{Name: " Big Jar ", Capacity: &capacity})
	if err != nil {
		t.Fatalf("CreateVessel: %v", err)
	}
	if vessel.ID == "" {
		t.Error("expected generated id")
	}
	if vessel.Name != "Big Jar" {
		t.Errorf("expected trimmed name, got %q", vessel.Name)
	}
	if vessel.Capacity == nil || *vessel.Capacity != 5.0 {
		t.Errorf("expected capacity 5, got %v", vessel.Capacity)
	}

	noCap, err := CreateVessel(ctx, database, user.ID, model.Vessel{ID: "v-fixed", Name: "Bottle"})
	if err != nil {
		t.Fatalf("CreateVessel: %v", err)
	}
	if noCap.ID != "v-fixed" || noCap.Capacity != nil {
		t.Errorf("unexpected vessel: %+v", noCap)
	}
}

func TestCreateVesselDuplicateID(t *testing.T) {
	database, user := setupStoreTest(t)
	ctx := context.Background()

	if _, err := CreateVessel(ctx, database, user.ID, model.Vessel{ID: "v1", Name: "Jar"}); err != nil {
		t.Fatal(err)
	}
	_, err := CreateVessel(ctx, database, user.ID, model.Vessel{ID: "v1", Name: "Other"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestCreateVesselInvalid(t *testing.T) {
	database, user := setupStoreTest(t)

	negative := -1.0
	_, err := CreateVessel(context.Background(), database, user.ID, model.Vessel{Name: "Jar", Capacity: &negative})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestVesselsAreScopedPerUser(t *testing.T) {
	database, alice := setupStoreTest(t)
	bob := newTestUser(t, database, "bob@example.com")
	ctx := context.Background()

	// Same id in two namespaces is fine.
	if _, err := CreateVessel(ctx, database, alice.ID, model.Vessel{ID: "v1", Name: "Alice Jar"}); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateVessel(ctx, database, bob.ID, model.Vessel{ID: "v1", Name: "Bob Jar"}); err != nil {
		t.Fatal(err)
	}

	vessels, _ := ListVessels(ctx, database, alice.ID)
	if len(vessels) != 1 || vessels[0].Name != "Alice Jar" {
		t.Errorf("unexpected vessels for alice: %+v", vessels)
	}

	if err := UpdateVessel(ctx, database, bob.ID, model.Vessel{ID: "v1", Name: "Renamed"}); err != nil {
		t.Fatal(err)
	}
	got, _ := GetVessel(ctx, database, alice.ID, "v1")
	if got.Name != "Alice Jar" {
		t.Errorf("bob's update leaked into alice's namespace: %q", got.Name)
	}
}

func TestUpdateVesselNotFound(t *testing.T) {
	database, user := setupStoreTest(t)

	err := UpdateVessel(context.Background(), database, user.ID, model.Vessel{ID: "missing", Name: "Jar"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteVesselInUse(t *testing.T) {
	database, user := setupStoreTest(t)
	ctx := context.Background()
	today := mustDate(t, "2024-05-01")

	vessel, _ := CreateVessel(ctx, database, user.ID, model.Vessel{Name: "Jar"})
	batch, err := CreateBatch(ctx, database, user.ID, model.Batch{VesselID: vessel.ID}, today)
	if err != nil {
		t.Fatal(err)
	}

	err = DeleteVessel(ctx, database, user.ID, vessel.ID)
	if !errors.Is(err, ErrVesselInUse) {
		t.Fatalf("expected ErrVesselInUse, got %v", err)
	}

	// Completed batches no longer hold the vessel.
	batch.Status = model.StatusCompleted
	if err := UpdateBatch(ctx, database, user.ID, *batch); err != nil {
		t.Fatal(err)
	}
	if err := DeleteVessel(ctx, database, user.ID, vessel.ID); err != nil {
		t.Fatalf("DeleteVessel: %v", err)
	}

	got, _ := GetVessel(ctx, database, user.ID, vessel.ID)
	if got != nil {
		t.Error("expected vessel to be gone")
	}

	// Deleting again is a no-op.
	if err := DeleteVessel(ctx, database, user.ID, vessel.ID); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestDeleteVesselRacingBatchCreate(t *testing.T) {
	database, user := setupStoreTest(t)
	ctx := context.Background()
	today := mustDate(t, "2024-05-01")

	for i := 0; i < 20; i++ {
		vessel, err := CreateVessel(ctx, database, user.ID, model.Vessel{Name: "Jar"})
		if err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		var createErr, deleteErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, createErr = CreateBatch(ctx, database, user.ID, model.Batch{VesselID: vessel.ID}, today)
		}()
		go func() {
			defer wg.Done()
			deleteErr = DeleteVessel(ctx, database, user.ID, vessel.ID)
		}()
		wg.Wait()

		// Exactly one side wins: the batch holds the vessel, or the vessel
		// is gone and the batch was refused.
		got, _ := GetVessel(ctx, database, user.ID, vessel.ID)
		switch {
		case createErr == nil && got == nil:
			t.Fatalf("round %d: active batch left pointing at a deleted vessel", i)
		case createErr == nil && !errors.Is(deleteErr, ErrVesselInUse):
			t.Fatalf("round %d: expected ErrVesselInUse, got %v", i, deleteErr)
		case createErr != nil && !errors.Is(createErr, ErrInvalid):
			t.Fatalf("round %d: expected ErrInvalid, got %v", i, createErr)
		}
	}
}
