package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWatchStarted(t *testing.T) {
	before := testutil.ToFloat64(activeWatches.WithLabelValues("vessels"))

	done := WatchStarted("vessels")
	if got := testutil.ToFloat64(activeWatches.WithLabelValues("vessels")); got != before+1 {
		t.Errorf("expected %v open watches, got %v", before+1, got)
	}

	done()
	if got := testutil.ToFloat64(activeWatches.WithLabelValues("vessels")); got != before {
		t.Errorf("expected %v open watches after close, got %v", before, got)
	}
}

func TestRecordWriteFailure(t *testing.T) {
	before := testutil.ToFloat64(writeFailures.WithLabelValues("batches"))
	RecordWriteFailure("batches")
	if got := testutil.ToFloat64(writeFailures.WithLabelValues("batches")); got != before+1 {
		t.Errorf("expected counter to increase by one, got %v -> %v", before, got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := Middleware(mux)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/ping/42", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `route="GET /ping/{id}"`) {
		t.Errorf("expected request to be labelled by route pattern, got:\n%s", body)
	}
}
