package mirror

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/opjourney/opjourney/pkg/logging"
)

func testLogger() *logging.Logger {
	log := logging.NewLogger(logging.ERROR, false)
	return log
}

func TestSubmitForwardsSampledReads(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
	}))
	defer target.Close()

	m := New(target.URL, 1.0, testLogger())
	m.Start()

	if !m.Submit("GET", "/dbs/app/docs/alpha") {
		t.Fatal("submission at rate 1.0 not enqueued")
	}
	m.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || paths[0] != "/dbs/app/docs/alpha" {
		t.Errorf("mirrored paths = %v", paths)
	}
	sent, dropped, failed := m.Stats()
	if sent != 1 || dropped != 0 || failed != 0 {
		t.Errorf("stats = (%d, %d, %d)", sent, dropped, failed)
	}
}

func TestZeroRateNeverSubmits(t *testing.T) {
	m := New("http://127.0.0.1:1", 0, testLogger())
	for i := 0; i < 100; i++ {
		if m.Submit("GET", "/x") {
			t.Fatal("rate 0 submitted a request")
		}
	}
}

func TestFullQueueDrops(t *testing.T) {
	// No worker started, so the queue only drains into the buffer.
	m := New("http://127.0.0.1:1", 1.0, testLogger())
	for i := 0; i < queueDepth; i++ {
		if !m.Submit("GET", "/x") {
			t.Fatalf("submission %d rejected before the queue filled", i)
		}
	}
	if m.Submit("GET", "/x") {
		t.Error("submission accepted past queue depth")
	}
	_, dropped, _ := m.Stats()
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestUnreachableTargetCountsFailure(t *testing.T) {
	m := New("http://127.0.0.1:1", 1.0, testLogger())
	m.client.Timeout = 100 * time.Millisecond
	m.Start()
	m.Submit("GET", "/x")
	m.Close()

	_, _, failed := m.Stats()
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}
