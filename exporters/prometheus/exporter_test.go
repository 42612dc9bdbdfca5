package prometheus

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"

	"github.com/opjourney/opjourney/internal/store"
	"github.com/opjourney/opjourney/pkg/journey"
)

func finishedJourney(t *testing.T, running time.Duration) *journey.Journey {
	t.Helper()
	j := journey.New(journey.StageRunning)
	time.Sleep(running)
	j.Finish()
	return j
}

func TestExporterOutputParses(t *testing.T) {
	obs := journey.NewObserver()
	obs.Capture(finishedJourney(t, 2*time.Millisecond))
	obs.Capture(finishedJourney(t, time.Millisecond))

	s := store.New(time.Hour)
	defer s.Close()
	s.Database("app")
	s.NextOpTime()

	e := NewExporter(obs, s, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()

	// The whole payload must be valid exposition format.
	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(strings.NewReader(body))
	if err != nil {
		t.Fatalf("output does not parse: %v\n%s", err, body)
	}

	for _, name := range []string{
		"journeyd_operations_total",
		"journeyd_stage_operations_total",
		"journeyd_stage_duration_seconds_min",
		"journeyd_stage_duration_seconds_max",
		"journeyd_stage_duration_seconds_avg",
		"journeyd_databases_total",
		"journeyd_op_time",
		"journeyd_uptime_seconds",
		"journeyd_process_memory_used_bytes",
	} {
		if _, ok := families[name]; !ok {
			t.Errorf("missing metric family %q", name)
		}
	}

	opsFamily := families["journeyd_operations_total"]
	if got := opsFamily.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("journeyd_operations_total = %v, want 2", got)
	}

	stageOps := families["journeyd_stage_operations_total"]
	found := false
	for _, m := range stageOps.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "stage" && l.GetValue() == journey.StageRunning.String() {
				found = true
				if v := m.GetCounter().GetValue(); v != 2 {
					t.Fatalf("running stage ops = %v, want 2", v)
				}
			}
		}
	}
	if !found {
		t.Fatal("no running stage sample in journeyd_stage_operations_total")
	}
}

func TestExporterWithoutObserver(t *testing.T) {
	s := store.New(time.Hour)
	defer s.Close()

	e := NewExporter(nil, s, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if strings.Contains(body, "journeyd_operations_total") {
		t.Fatal("journey metrics rendered with no observer installed")
	}
	if !strings.Contains(body, "journeyd_op_time") {
		t.Fatal("store metrics missing")
	}

	parser := expfmt.NewTextParser(model.UTF8Validation)
	if _, err := parser.TextToMetricFamilies(strings.NewReader(body)); err != nil {
		t.Fatalf("output does not parse: %v\n%s", err, body)
	}
}
