package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Attempts(t *testing.T) {
	r := New()
	r.ObserveAttempt("greenhouse", "automated", 2*time.Second)
	r.ObserveAttempt("greenhouse", "automated", time.Second)
	r.ObserveAttempt("greenhouse", "failed", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.attempts.WithLabelValues("greenhouse", "automated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.attempts.WithLabelValues("greenhouse", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestRecorder_FieldsAndBrowsers(t *testing.T) {
	r := New()
	r.ObserveField("lever", "phone", "not_found")
	r.BrowserOpened()
	r.BrowserOpened()
	r.BrowserClosed()
	r.SetBreakerState("lever", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.fields.WithLabelValues("lever", "phone", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.browsersOpen))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.breakerState.WithLabelValues("lever")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveAttempt("x", "automated", time.Second)
		r.ObserveField("x", "email", "filled")
		r.BrowserOpened()
		r.BrowserClosed()
		r.SetBreakerState("x", 0)
	})
	assert.Nil(t, r.Registry())
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ObserveAttempt("indeed", "redirect", 10*time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `autoapply_attempts_total{method="redirect",platform="indeed"} 1`)
	assert.Contains(t, string(body), "autoapply_browsers_open")
}
