package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/auto-apply/internal/batch"
	"github.com/jonathan/auto-apply/internal/config"
	"github.com/jonathan/auto-apply/internal/metrics"
	"github.com/jonathan/auto-apply/internal/platform"
	"github.com/jonathan/auto-apply/internal/server/ratelimit"
	"github.com/jonathan/auto-apply/internal/types"
)

// fakeApplier answers every attempt with a fixed result and records the calls.
type fakeApplier struct {
	mu       sync.Mutex
	calls    []string
	data     []types.ApplicationData
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	result   func(jobURL, platformID string) types.ApplicationResult
}

func (f *fakeApplier) ApplyToJob(_ context.Context, jobURL, platformID string, data types.ApplicationData) types.ApplicationResult {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls = append(f.calls, jobURL)
	f.data = append(f.data, data)
	f.mu.Unlock()

	if f.result != nil {
		return f.result(jobURL, platformID)
	}
	return types.ApplicationResult{
		Success:        true,
		Platform:       platformID,
		Method:         types.MethodAutomated,
		ConfirmationID: "GH-1",
	}
}

func newTestServer(t *testing.T, applier *fakeApplier, mutate ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		Port:        0,
		Concurrency: 4,
		RateLimit:   &ratelimit.Config{Enabled: false},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s := New(cfg, applier, platform.DefaultRegistry(), metrics.New(), nil)
	t.Cleanup(s.rateLimiter.Stop)
	return s
}

func do(t *testing.T, s *Server, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

const applyBody = `{
	"job_url": "https://boards.greenhouse.io/acme/jobs/1",
	"platform": "greenhouse",
	"data": {
		"full_name": "Ada Lovelace",
		"email": "ada@example.com",
		"phone": "+1 555 0100",
		"resume_url": "https://cdn.example.com/ada.pdf"
	}
}`

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeApplier{})

	w := do(t, s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestPlatformsEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeApplier{})

	w := do(t, s, http.MethodGet, "/platforms", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Platforms []platformInfo `json:"platforms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	ids := make([]string, 0, len(resp.Platforms))
	for _, p := range resp.Platforms {
		ids = append(ids, p.ID)
		assert.NotEmpty(t, p.Name)
	}
	assert.Contains(t, ids, "greenhouse")
	assert.Contains(t, ids, "lever")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeApplier{})

	w := do(t, s, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestApplyEndpoint(t *testing.T) {
	applier := &fakeApplier{}
	s := newTestServer(t, applier)

	w := do(t, s, http.MethodPost, "/apply", applyBody)

	require.Equal(t, http.StatusOK, w.Code)
	var result types.ApplicationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, types.MethodAutomated, result.Method)
	assert.Equal(t, "GH-1", result.ConfirmationID)

	require.Len(t, applier.calls, 1)
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/1", applier.calls[0])
	assert.Equal(t, "Ada Lovelace", applier.data[0].FullName)
	assert.Equal(t, "https://cdn.example.com/ada.pdf", applier.data[0].ResumeURL)
}

func TestApplyEndpoint_FailedAttemptIsStillOK(t *testing.T) {
	applier := &fakeApplier{result: func(jobURL, platformID string) types.ApplicationResult {
		return types.ApplicationResult{
			Platform:    platformID,
			Method:      types.MethodRedirect,
			Error:       "Platform not supported for automation",
			RedirectURL: jobURL,
		}
	}}
	s := newTestServer(t, applier)

	w := do(t, s, http.MethodPost, "/apply", strings.Replace(applyBody, `"greenhouse"`, `"monster"`, 1))

	require.Equal(t, http.StatusOK, w.Code)
	var result types.ApplicationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, types.MethodRedirect, result.Method)
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/1", result.RedirectURL)
}

func TestApplyEndpoint_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"invalid JSON", `{invalid json}`, http.StatusBadRequest},
		{"missing platform", `{"job_url": "https://x.test/1", "data": {}}`, http.StatusBadRequest},
		{"missing data", `{"job_url": "https://x.test/1", "platform": "lever"}`, http.StatusBadRequest},
		{"wrong type", `{"job_url": 7, "platform": "lever", "data": {}}`, http.StatusBadRequest},
		{"too large", `{"job_url": "` + strings.Repeat("a", int(MaxBodyBytes)) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applier := &fakeApplier{}
			s := newTestServer(t, applier)

			w := do(t, s, http.MethodPost, "/apply", tt.body)

			assert.Equal(t, tt.status, w.Code)
			var resp errorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.Empty(t, applier.calls, "no attempt may start for a rejected request")
		})
	}
}

func TestApplyEndpoint_SchemaFieldsReported(t *testing.T) {
	s := newTestServer(t, &fakeApplier{})

	w := do(t, s, http.MethodPost, "/apply", `{"job_url": "https://x.test/1", "data": {}}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "request does not match schema", resp.Error)
	require.NotEmpty(t, resp.Fields)
	assert.Contains(t, strings.Join(resp.Fields, "\n"), "platform")
}

func batchBody(n, concurrency int) string {
	jobs := make([]string, n)
	for i := range jobs {
		jobs[i] = fmt.Sprintf(`{"job_url": "https://jobs.lever.co/acme/%d", "platform": "lever"}`, i)
	}
	return fmt.Sprintf(`{
		"concurrency": %d,
		"data": {"full_name": "Ada Lovelace", "email": "ada@example.com", "phone": "1", "resume_url": "https://cdn.example.com/a.pdf"},
		"jobs": [%s]
	}`, concurrency, strings.Join(jobs, ","))
}

func TestBatchEndpoint(t *testing.T) {
	applier := &fakeApplier{result: func(jobURL, platformID string) types.ApplicationResult {
		if strings.HasSuffix(jobURL, "/1") {
			return types.ApplicationResult{Platform: platformID, Method: types.MethodFailed, Error: "boom"}
		}
		return types.ApplicationResult{Success: true, Platform: platformID, Method: types.MethodAutomated}
	}}
	s := newTestServer(t, applier)

	w := do(t, s, http.MethodPost, "/apply/batch", batchBody(3, 2))

	require.Equal(t, http.StatusOK, w.Code)
	var summary batch.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Automated)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Items, 3)
	for i, item := range summary.Items {
		assert.Equal(t, i, item.Index)
		assert.Equal(t, fmt.Sprintf("https://jobs.lever.co/acme/%d", i), item.JobURL)
	}
}

func TestBatchEndpoint_ConcurrencyCapped(t *testing.T) {
	applier := &fakeApplier{delay: 20 * time.Millisecond}
	s := newTestServer(t, applier, func(c *Config) { c.Concurrency = 2 })

	w := do(t, s, http.MethodPost, "/apply/batch", batchBody(8, 32))

	require.Equal(t, http.StatusOK, w.Code)
	assert.LessOrEqual(t, applier.peak.Load(), int32(2), "a batch file cannot raise the server limit")
	assert.Len(t, applier.calls, 8)
}

func TestBatchEndpoint_Invalid(t *testing.T) {
	applier := &fakeApplier{}
	s := newTestServer(t, applier)

	for _, body := range []string{
		`{"jobs": []}`,
		`{"jobs": [{"job_url": "https://x.test"}]}`,
		`{"jobs": [{"job_url": "https://x.test", "platform": "lever"}], "concurrency": 0}`,
		`not json`,
	} {
		w := do(t, s, http.MethodPost, "/apply/batch", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, applier.calls)
}

func TestAuth(t *testing.T) {
	jwtCfg := &config.JWTConfig{
		Secret:          "server-test-secret-0123456789",
		Issuer:          config.DefaultJWTIssuer,
		ExpirationHours: 1,
	}
	applier := &fakeApplier{}
	s := newTestServer(t, applier, func(c *Config) { c.JWT = jwtCfg })

	token, err := NewJWTService(jwtCfg).GenerateToken("scheduler")
	require.NoError(t, err)

	t.Run("health is public", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/platforms", "").Code)
	})

	t.Run("apply requires a token", func(t *testing.T) {
		w := do(t, s, http.MethodPost, "/apply", applyBody)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = do(t, s, http.MethodPost, "/apply/batch", batchBody(1, 1), "Authorization", "Bearer forged")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, applier.calls)
	})

	t.Run("valid token", func(t *testing.T) {
		w := do(t, s, http.MethodPost, "/apply", applyBody, "Authorization", "Bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, applier.calls, 1)
	})
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, &fakeApplier{}, func(c *Config) {
		c.RateLimit = &ratelimit.Config{
			Enabled:       true,
			DefaultLimit:  100,
			DefaultWindow: time.Minute,
			EndpointConfigs: []ratelimit.EndpointConfig{
				{Path: "/apply", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1},
			},
		}
	})

	first := do(t, s, http.MethodPost, "/apply", applyBody)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := do(t, s, http.MethodPost, "/apply", applyBody)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limit_exceeded", resp["error"])

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
}

func TestCORSMiddleware(t *testing.T) {
	s := newTestServer(t, &fakeApplier{})

	w := do(t, s, http.MethodGet, "/health", "")

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestCORSMiddleware_OPTIONS(t *testing.T) {
	applier := &fakeApplier{}
	s := newTestServer(t, applier)

	w := do(t, s, http.MethodOptions, "/apply", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Empty(t, applier.calls)
}

func TestExtractClientID(t *testing.T) {
	s := newTestServer(t, &fakeApplier{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:5123"
	assert.Equal(t, "203.0.113.7", s.extractClientID(req))

	req.RemoteAddr = "no-port"
	assert.Equal(t, "no-port", s.extractClientID(req))
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, &fakeApplier{})
	s.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
