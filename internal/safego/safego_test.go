package safego

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/muazhazali/lepakmasjid/internal/telemetry"
)

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background task did not finish")
	}
}

func TestGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})
	Go("test_run", func() { close(done) })
	waitFor(t, done)
}

func TestGo_RecoversPanicAndCounts(t *testing.T) {
	counter := telemetry.BackgroundPanicsTotal.WithLabelValues("test_panic")
	before := testutil.ToFloat64(counter)

	done := make(chan struct{})
	Go("test_panic", func() {
		defer close(done)
		panic("boom")
	})
	waitFor(t, done)

	// The deferred close runs before the recover handler increments.
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(counter) == before+1
	}, 2*time.Second, 10*time.Millisecond)
}
