// Package mirror forwards a sample of read traffic to a secondary endpoint.
// Mirroring is best-effort by contract: the caller only pays for the
// submission, and submissions that would block are dropped.
package mirror

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opjourney/opjourney/pkg/logging"
)

const queueDepth = 128

type request struct {
	method string
	path   string
}

// Mirror ships sampled read requests to the target.
type Mirror struct {
	target string
	rate   float64
	client *http.Client
	log    *logging.Logger

	queue chan request
	wg    sync.WaitGroup

	sent    atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// New creates a Mirror forwarding to target. rate is the sampled fraction
// of reads in [0, 1].
func New(target string, rate float64, log *logging.Logger) *Mirror {
	return &Mirror{
		target: target,
		rate:   rate,
		client: &http.Client{Timeout: 5 * time.Second},
		log:    log.WithComponent("mirror"),
		queue:  make(chan request, queueDepth),
	}
}

// Start launches the forwarding worker.
func (m *Mirror) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for req := range m.queue {
			m.forward(req)
		}
	}()
}

// Close stops accepting submissions and drains the queue.
func (m *Mirror) Close() {
	close(m.queue)
	m.wg.Wait()
}

// Submit samples and enqueues one read for mirroring. It never blocks;
// a full queue counts the request as dropped. Returns whether the request
// was enqueued.
func (m *Mirror) Submit(method, path string) bool {
	if m.rate <= 0 || rand.Float64() >= m.rate {
		return false
	}
	select {
	case m.queue <- request{method: method, path: path}:
		return true
	default:
		m.dropped.Add(1)
		return false
	}
}

func (m *Mirror) forward(req request) {
	httpReq, err := http.NewRequest(req.method, m.target+req.path, nil)
	if err != nil {
		m.failed.Add(1)
		return
	}
	resp, err := m.client.Do(httpReq)
	if err != nil {
		m.failed.Add(1)
		m.log.Debug("Mirrored read failed", map[string]interface{}{
			"path":  req.path,
			"error": err.Error(),
		})
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	m.sent.Add(1)
}

// Stats returns the lifetime sent/dropped/failed counts.
func (m *Mirror) Stats() (sent, dropped, failed int64) {
	return m.sent.Load(), m.dropped.Load(), m.failed.Load()
}

// String describes the mirror configuration.
func (m *Mirror) String() string {
	return fmt.Sprintf("mirror{target: %s, rate: %.2f}", m.target, m.rate)
}
