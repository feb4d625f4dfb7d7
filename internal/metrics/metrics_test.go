package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	m.Processed("PersonItem", ResultSaved)
	m.Processed("PersonItem", ResultSaved)
	m.Processed("PersonItem", ResultInvalid)
	m.ValidationErrors("PersonItem", []string{"age", "name"})
	m.ObserveSave("PersonItem", 3*time.Millisecond)

	if got := testutil.ToFloat64(m.processed.WithLabelValues("PersonItem", ResultSaved)); got != 2 {
		t.Errorf("saved = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.processed.WithLabelValues("PersonItem", ResultInvalid)); got != 1 {
		t.Errorf("invalid = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.validationErrors); got != 2 {
		t.Errorf("validation error series = %d, want 2", got)
	}
	if got := testutil.CollectAndCount(m.saveDuration); got != 1 {
		t.Errorf("save duration series = %d, want 1", got)
	}

	if _, err := New(reg); err == nil {
		t.Error("New() registered the same metrics twice")
	}

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `docitem_items_processed_total{class="PersonItem",result="saved"} 2`) {
		t.Errorf("unexpected body:\n%s", body)
	}
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	m.Processed("C", ResultFailed)
	m.ValidationErrors("C", []string{"f"})
	m.ObserveSave("C", time.Second)
}
