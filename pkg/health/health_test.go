package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func passingCheck() CheckFunc {
	return func(context.Context) error { return nil }
}

func failingCheck(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, endpoint http.HandlerFunc) (int, statusBody) {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func drive(p *probe, n int) {
	for range n {
		p.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		checks     []CheckFunc
		runs       int
		wantStatus int
		wantFailed []string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
		},
		{
			name:       "all passing",
			checks:     []CheckFunc{passingCheck(), passingCheck()},
			runs:       FailureThreshold,
			wantStatus: http.StatusOK,
		},
		{
			name:       "failure below threshold",
			checks:     []CheckFunc{failingCheck("temporary")},
			runs:       FailureThreshold - 1,
			wantStatus: http.StatusOK,
		},
		{
			name:       "failure at threshold",
			checks:     []CheckFunc{passingCheck(), failingCheck("connection refused")},
			runs:       FailureThreshold,
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: []string{"check1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			for i, c := range tt.checks {
				h.AddLivenessCheck("check"+string(rune('0'+i)), time.Second, c)
			}
			for _, p := range h.probes {
				drive(p, tt.runs)
			}

			code, body := serve(t, h.LiveEndpoint)
			assert.Equal(t, tt.wantStatus, code)
			if len(tt.wantFailed) == 0 {
				assert.Equal(t, "ok", body.Status)
				assert.Empty(t, body.Checks)
				return
			}
			assert.Equal(t, "unhealthy", body.Status)
			for _, name := range tt.wantFailed {
				assert.Contains(t, body.Checks, name)
			}
			assert.Len(t, body.Checks, len(tt.wantFailed))
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("not ready by default", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("mongo", time.Second, passingCheck())

		code, body := serve(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Contains(t, body.Checks, "_readiness")
	})

	t.Run("ready toggles", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("mongo", time.Second, passingCheck())
		h.SetReady(true)

		code, _ := serve(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusOK, code)

		h.SetReady(false)
		code, _ = serve(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})

	t.Run("liveness failures do not affect readiness", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("goroutines", time.Second, failingCheck("too many"))
		h.AddReadinessCheck("mongo", time.Second, passingCheck())
		h.AddReadinessCheck("redis", time.Second, failingCheck("refused"))
		h.SetReady(true)
		for _, p := range h.probes {
			drive(p, FailureThreshold)
		}

		code, body := serve(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, map[string]string{"redis": "refused"}, body.Checks)
	})
}

func TestIsReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("mongo", time.Second, passingCheck())

	assert.False(t, h.IsReady())
	h.SetReady(true)
	assert.True(t, h.IsReady())
	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestProbeRecovers(t *testing.T) {
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	p := h.probes[0]

	drive(p, FailureThreshold)
	assert.False(t, p.healthy.Load())
	assert.Equal(t, "down", p.failure())

	failing = false
	drive(p, SuccessThreshold)
	assert.True(t, p.healthy.Load())
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, failingCheck("err"))
	h.AddReadinessCheck("ready", time.Second, passingCheck())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()

	h.Stop()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.ErrorContains(t, GoroutineCountCheck(0)(context.Background()), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(func(context.Context) error { return nil })(context.Background()))
	assert.ErrorContains(t, PingCheck(func(context.Context) error { return errors.New("refused") })(context.Background()), "refused")
}

func TestGrowthCheck(t *testing.T) {
	values := []int64{10, 12, 30, 31}
	i := 0
	check := GrowthCheck(func(context.Context) (int64, error) {
		v := values[i]
		i++
		return v, nil
	}, 5)
	ctx := context.Background()

	assert.NoError(t, check(ctx), "first observation sets the baseline")
	assert.NoError(t, check(ctx))
	assert.ErrorContains(t, check(ctx), "grew by 18")
	assert.NoError(t, check(ctx))

	failing := GrowthCheck(func(context.Context) (int64, error) { return 0, errors.New("db down") }, 1)
	assert.ErrorContains(t, failing(ctx), "db down")
}
