package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/solvetheriddle/fermentlog/internal/auth"
	"github.com/solvetheriddle/fermentlog/internal/db"
	"github.com/solvetheriddle/fermentlog/internal/model"
	"github.com/solvetheriddle/fermentlog/internal/store"
	"github.com/solvetheriddle/fermentlog/internal/watch"
)

const testJWTSecret = "test-secret"

func newTestServer(t *testing.T) (*httptest.Server, *watch.Repository) {
	t.Helper()
	repo := watch.NewRepository(db.NewTestDB(t))
	server := httptest.NewServer(NewRouter(repo, testJWTSecret, nil))
	t.Cleanup(server.Close)
	return server, repo
}

func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	server, repo := newTestServer(t)

	// Create admin user.
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	store.CreateUser(ctx, repo.DB, "admin@example.com", "Admin", string(hash), model.RoleAdmin)

	// Get token.
	body, _ := json.Marshal(map[string]string{"email": "admin@example.com", "password": "password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp loginResponse
	json.NewDecoder(resp.Body).Decode(&loginResp)
	if loginResp.Token == "" {
		t.Fatal("empty token from login")
	}

	return server, loginResp.Token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends an authenticated request and decodes the JSON response into out
// when out is non-nil.
func do(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestLoginEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong password", map[string]string{"email": "admin@example.com", "password": "wrong"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"email": "nobody@example.com", "password": "password"}, http.StatusUnauthorized},
		{"missing fields", map[string]string{"email": "admin@example.com"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestMeAndLogout(t *testing.T) {
	server, token := setupTestServer(t)

	var me model.User
	if code := do(t, "GET", server.URL+"/api/auth/me", token, nil, &me); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if me.Email != "admin@example.com" || me.Role != model.RoleAdmin {
		t.Errorf("unexpected identity: %+v", me)
	}

	if code := do(t, "POST", server.URL+"/api/auth/logout", token, nil, nil); code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", code)
	}
	if code := do(t, "GET", server.URL+"/api/auth/me", token, nil, nil); code != http.StatusUnauthorized {
		t.Errorf("expected revoked token to be rejected, got %d", code)
	}
}

func TestChangePassword(t *testing.T) {
	server, token := setupTestServer(t)

	code := do(t, "PUT", server.URL+"/api/auth/password", token,
		map[string]string{"current_password": "wrong", "new_password": "new-password"}, nil)
	if code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong current password, got %d", code)
	}

	code = do(t, "PUT", server.URL+"/api/auth/password", token,
		map[string]string{"current_password": "password", "new_password": "short"}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for short password, got %d", code)
	}

	code = do(t, "PUT", server.URL+"/api/auth/password", token,
		map[string]string{"current_password": "password", "new_password": "new-password"}, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	body, _ := json.Marshal(map[string]string{"email": "admin@example.com", "password": "new-password"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected login with new password to succeed, got %d", resp.StatusCode)
	}
}

func TestVesselsAPIFlow(t *testing.T) {
	server, token := setupTestServer(t)

	var vessel model.Vessel
	code := do(t, "POST", server.URL+"/api/vessels", token, map[string]any{"name": "Big Jar", "capacity": 4}, &vessel)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if vessel.ID == "" || vessel.Capacity == nil || *vessel.Capacity != 4 {
		t.Errorf("unexpected vessel: %+v", vessel)
	}

	if code := do(t, "POST", server.URL+"/api/vessels", token, map[string]any{"name": ""}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank name, got %d", code)
	}

	var updated model.Vessel
	code = do(t, "PUT", server.URL+"/api/vessels/"+vessel.ID, token, map[string]any{"name": "Crock"}, &updated)
	if code != http.StatusOK || updated.Name != "Crock" {
		t.Errorf("update: got %d %+v", code, updated)
	}

	if code := do(t, "PUT", server.URL+"/api/vessels/missing", token, map[string]any{"name": "X"}, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 updating missing vessel, got %d", code)
	}

	var vessels []model.Vessel
	do(t, "GET", server.URL+"/api/vessels", token, nil, &vessels)
	if len(vessels) != 1 {
		t.Errorf("expected 1 vessel, got %d", len(vessels))
	}

	if code := do(t, "DELETE", server.URL+"/api/vessels/"+vessel.ID, token, nil, nil); code != http.StatusOK {
		t.Errorf("expected 200 deleting vessel, got %d", code)
	}
	if code := do(t, "GET", server.URL+"/api/vessels/"+vessel.ID, token, nil, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", code)
	}
}

func TestIngredientsAPIFlow(t *testing.T) {
	server, token := setupTestServer(t)

	var ingredient model.Ingredient
	if code := do(t, "POST", server.URL+"/api/ingredients", token, map[string]any{"id": "tea", "name": "Black tea"}, &ingredient); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if ingredient.ID != "tea" {
		t.Errorf("expected client id to be kept, got %q", ingredient.ID)
	}
	if code := do(t, "POST", server.URL+"/api/ingredients", token, map[string]any{"id": "tea", "name": "Again"}, nil); code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate id, got %d", code)
	}

	var ingredients []model.Ingredient
	do(t, "GET", server.URL+"/api/ingredients", token, nil, &ingredients)
	if len(ingredients) != 1 || ingredients[0].Name != "Black tea" {
		t.Errorf("unexpected ingredients: %+v", ingredients)
	}
}

func TestBatchesAPIFlow(t *testing.T) {
	server, token := setupTestServer(t)

	var vessel model.Vessel
	do(t, "POST", server.URL+"/api/vessels", token, map[string]any{"name": "Big Jar"}, &vessel)

	var batch model.Batch
	code := do(t, "POST", server.URL+"/api/batches", token, map[string]any{
		"vessel_id":  vessel.ID,
		"start_date": "2024-03-05",
		"primary_ingredients": []map[string]string{
			{"ingredient_id": "tea", "name": "Black tea", "amount": "8 bags"},
		},
	}, &batch)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if batch.Status != model.StatusActive || batch.Phase != model.PhasePrimary {
		t.Errorf("defaults not applied: %+v", batch)
	}
	if batch.Vessel == nil || batch.Vessel.Name != "Big Jar" {
		t.Errorf("expected joined vessel, got %+v", batch.Vessel)
	}
	if batch.BrewDurationDays <= 0 {
		t.Errorf("expected positive brew duration, got %d", batch.BrewDurationDays)
	}

	if code := do(t, "POST", server.URL+"/api/batches", token, map[string]any{"vessel_id": "ghost"}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown vessel, got %d", code)
	}

	// Partial update keeps other fields.
	var updated model.Batch
	do(t, "PUT", server.URL+"/api/batches/"+batch.ID, token, map[string]any{"name": "Ginger kombucha"}, &updated)
	if updated.Name != "Ginger kombucha" || len(updated.PrimaryIngredients) != 1 {
		t.Errorf("unexpected update result: %+v", updated)
	}

	var advanced model.Batch
	if code := do(t, "POST", server.URL+"/api/batches/"+batch.ID+"/advance", token, nil, &advanced); code != http.StatusOK {
		t.Fatalf("advance: expected 200, got %d", code)
	}
	if advanced.Phase != model.PhaseSecondary {
		t.Errorf("expected secondary, got %s", advanced.Phase)
	}
	if code := do(t, "POST", server.URL+"/api/batches/"+batch.ID+"/advance", token, nil, nil); code != http.StatusConflict {
		t.Errorf("expected 409 advancing past secondary, got %d", code)
	}

	// The vessel is pinned while the batch is active.
	if code := do(t, "DELETE", server.URL+"/api/vessels/"+vessel.ID, token, nil, nil); code != http.StatusConflict {
		t.Errorf("expected 409 deleting vessel in use, got %d", code)
	}

	if code := do(t, "POST", server.URL+"/api/batches/"+batch.ID+"/complete", token, nil, nil); code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d", code)
	}

	var active []model.Batch
	do(t, "GET", server.URL+"/api/batches?status=active", token, nil, &active)
	if len(active) != 0 {
		t.Errorf("expected no active batches, got %d", len(active))
	}
	var completed []model.Batch
	do(t, "GET", server.URL+"/api/batches?status=completed", token, nil, &completed)
	if len(completed) != 1 {
		t.Errorf("expected 1 completed batch, got %d", len(completed))
	}
	if code := do(t, "GET", server.URL+"/api/batches?status=bogus", token, nil, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad status, got %d", code)
	}

	if code := do(t, "DELETE", server.URL+"/api/batches/"+batch.ID, token, nil, nil); code != http.StatusOK {
		t.Errorf("expected 200 deleting batch, got %d", code)
	}
	if code := do(t, "DELETE", server.URL+"/api/batches/"+batch.ID, token, nil, nil); code != http.StatusOK {
		t.Errorf("expected repeated delete to succeed, got %d", code)
	}
}

func TestBatchImage(t *testing.T) {
	server, token := setupTestServer(t)

	var vessel model.Vessel
	do(t, "POST", server.URL+"/api/vessels", token, map[string]any{"name": "Jar"}, &vessel)
	var batch model.Batch
	do(t, "POST", server.URL+"/api/batches", token, map[string]any{"vessel_id": vessel.ID}, &batch)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image", "jar.png")
	png.Encode(part, image.NewRGBA(image.Rect(0, 0, 40, 30)))
	mw.Close()

	req, _ := http.NewRequest("PUT", server.URL+"/api/batches/"+batch.ID+"/image", &body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d", resp.StatusCode)
	}

	req, _ = authRequest("GET", server.URL+"/api/batches/"+batch.ID+"/image", token, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("expected stored JPEG, got %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestWatchStream(t *testing.T) {
	server, token := setupTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", server.URL+"/api/watch/vessels", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := make(chan string)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
				events <- data
			}
		}
		close(events)
	}()

	next := func() []model.Vessel {
		t.Helper()
		select {
		case data, ok := <-events:
			if !ok {
				t.Fatal("stream closed")
			}
			var vessels []model.Vessel
			if err := json.Unmarshal([]byte(data), &vessels); err != nil {
				t.Fatalf("decoding snapshot: %v", err)
			}
			return vessels
		case <-ctx.Done():
			t.Fatal("timed out waiting for snapshot")
		}
		return nil
	}

	if initial := next(); len(initial) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", initial)
	}

	do(t, "POST", server.URL+"/api/vessels", token, map[string]any{"name": "Jar"}, nil)
	if snapshot := next(); len(snapshot) != 1 || snapshot[0].Name != "Jar" {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}
}

func TestWatchUnknownCollection(t *testing.T) {
	server, token := setupTestServer(t)
	if code := do(t, "GET", server.URL+"/api/watch/users", token, nil, nil); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	server, repo := newTestServer(t)
	ctx := context.Background()

	alice, _ := store.CreateUser(ctx, repo.DB, "alice@example.com", "", "", model.RoleUser)
	bob, _ := store.CreateUser(ctx, repo.DB, "bob@example.com", "", "", model.RoleUser)
	aliceToken, _ := auth.GenerateToken(testJWTSecret, alice.ID, alice.Email, alice.Role)
	bobToken, _ := auth.GenerateToken(testJWTSecret, bob.ID, bob.Email, bob.Role)

	var vessel model.Vessel
	do(t, "POST", server.URL+"/api/vessels", aliceToken, map[string]any{"name": "Alice's jar"}, &vessel)

	if code := do(t, "GET", server.URL+"/api/vessels/"+vessel.ID, bobToken, nil, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for another user's vessel, got %d", code)
	}
	var vessels []model.Vessel
	do(t, "GET", server.URL+"/api/vessels", bobToken, nil, &vessels)
	if len(vessels) != 0 {
		t.Errorf("expected bob to see no vessels, got %d", len(vessels))
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	server, _ := newTestServer(t)

	for _, path := range []string{"/api/batches", "/api/vessels", "/api/watch/batches", "/api/auth/me"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 for unauthenticated request, got %d", path, resp.StatusCode)
		}
	}
}

func TestRoleBasedAccess(t *testing.T) {
	server, repo := newTestServer(t)

	ctx := context.Background()
	user, _ := store.CreateUser(ctx, repo.DB, "user1@example.com", "", "", model.RoleUser)
	userToken, _ := auth.GenerateToken(testJWTSecret, user.ID, user.Email, model.RoleUser)

	// Regular user should not access /api/users.
	if code := do(t, "GET", server.URL+"/api/users", userToken, nil, nil); code != http.StatusForbidden {
		t.Errorf("expected 403 for user accessing users, got %d", code)
	}
}

func TestUserManagement(t *testing.T) {
	server, token := setupTestServer(t)

	var created model.User
	code := do(t, "POST", server.URL+"/api/users", token, map[string]string{
		"email": "brewer@example.com", "password": "long-enough", "role": model.RoleUser,
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}

	code = do(t, "POST", server.URL+"/api/users", token, map[string]string{
		"email": "brewer@example.com", "password": "long-enough", "role": model.RoleUser,
	}, nil)
	if code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", code)
	}

	var updated model.User
	do(t, "PUT", server.URL+"/api/users/"+created.ID, token, map[string]string{"role": model.RoleAdmin}, &updated)
	if updated.Role != model.RoleAdmin {
		t.Errorf("expected role update, got %+v", updated)
	}

	if code := do(t, "DELETE", server.URL+"/api/users/"+created.ID, token, nil, nil); code != http.StatusOK {
		t.Errorf("expected 200 deleting user, got %d", code)
	}
	var users []model.User
	do(t, "GET", server.URL+"/api/users", token, nil, &users)
	if len(users) != 1 {
		t.Errorf("expected only the admin to remain, got %d users", len(users))
	}
}

func TestRateLimitedLogin(t *testing.T) {
	repo := watch.NewRepository(db.NewTestDB(t))
	limit, err := RateLimit("2-M")
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(NewRouter(repo, testJWTSecret, limit))
	t.Cleanup(server.Close)

	var last int
	for i := 0; i < 3; i++ {
		body, _ := json.Marshal(map[string]string{"email": "x@example.com", "password": "nope"})
		resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("expected 429 after limit, got %d", last)
	}
}
