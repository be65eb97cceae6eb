package metrics_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/artpar/rowmap/adapters/metrics"
	"github.com/artpar/rowmap/core/coerce"
	"github.com/artpar/rowmap/core/relation"
	"github.com/artpar/rowmap/core/schema"
	"github.com/artpar/rowmap/core/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	// Use a new registry to avoid conflicts with other tests
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}

	if m.OperationsTotal == nil {
		t.Error("OperationsTotal is nil")
	}
	if m.OperationDuration == nil {
		t.Error("OperationDuration is nil")
	}
	if m.TablesCreated == nil {
		t.Error("TablesCreated is nil")
	}
	if m.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
	if m.ConfigReloads == nil {
		t.Error("ConfigReloads is nil")
	}
}

func TestOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.Operation("save", "Simple", 2*time.Millisecond, nil)
	m.Operation("save", "Simple", time.Millisecond, nil)
	m.Operation("find_by_id", "Nested", time.Millisecond, &relation.DanglingReferenceError{})

	if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("save", "Simple", "ok")); got != 2 {
		t.Errorf("save ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("find_by_id", "Nested", "dangling_reference")); got != 1 {
		t.Errorf("find dangling = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "rowmap_operation_duration_seconds" {
			found = true
		}
	}
	if !found {
		t.Error("rowmap_operation_duration_seconds not gathered")
	}
}

func TestRelationCounters(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	m.CascadeSave("Simple")
	m.Hydration("Rel")
	m.Hydration("Rel")
	m.TableCreated("simples")

	if got := testutil.ToFloat64(m.CascadeSaves.WithLabelValues("Simple")); got != 1 {
		t.Errorf("cascade saves = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Hydrations.WithLabelValues("Rel")); got != 2 {
		t.Errorf("hydrations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TablesCreated); got != 1 {
		t.Errorf("tables created = %v, want 1", got)
	}
}

func TestRecordReload(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	at := time.Unix(1700000000, 0)

	m.RecordReload(at, nil)
	m.RecordReload(at, errors.New("bad yaml"))

	if got := testutil.ToFloat64(m.ConfigReloads); got != 1 {
		t.Errorf("reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ConfigReloadErrors); got != 1 {
		t.Errorf("reload errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ConfigLastReload); got != 1700000000 {
		t.Errorf("last reload = %v", got)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("wrapped: %w", &relation.DanglingReferenceError{}), "dangling_reference"},
		{relation.ErrDepthExceeded, "depth_exceeded"},
		{&coerce.Error{}, "coercion_error"},
		{schema.Errorf("X", "bad"), "schema_error"},
		{&storage.ExecError{Op: "exec", Err: errors.New("locked")}, "storage_error"},
		{errors.New("other"), "error"},
	}

	for _, tt := range tests {
		if got := metrics.Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
