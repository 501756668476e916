package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmkonnect/reconcile/internal/migration"
)

func TestRecordRunExposedOverHandler(t *testing.T) {
	r := NewRecorder()

	r.RecordRun("Seed tasks", migration.RunSuccess, 250*time.Millisecond, 8, 0)
	r.RecordRun("Seed tasks", migration.RunPartial, 100*time.Millisecond, 3, 2)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body,
		`migration_run_status_total{job_name="Seed tasks",status="success"} 1`)
	assert.Contains(t, body,
		`migration_run_status_total{job_name="Seed tasks",status="partial"} 1`)
	assert.Contains(t, body,
		`migration_records_migrated_total{job_name="Seed tasks"} 11`)
	assert.Contains(t, body,
		`migration_records_failed_total{job_name="Seed tasks"} 2`)
	assert.True(t, strings.Contains(body, "migration_run_duration_seconds_bucket"))
}

func TestRecorderRegistryIsPrivate(t *testing.T) {
	// Two recorders must not collide on metric registration.
	a := NewRecorder()
	b := NewRecorder()
	a.RecordRun("job", migration.RunSuccess, time.Second, 1, 0)
	b.RecordRun("job", migration.RunFailed, time.Second, 0, 1)
}
