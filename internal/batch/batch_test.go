package batch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/auto-apply/internal/types"
)

type fakeApplier struct {
	mu       sync.Mutex
	calls    []string
	names    map[string]string
	inFlight atomic.Int32
	peak     atomic.Int32
	outcome  func(jobURL, platform string) types.ApplicationResult
}

func (f *fakeApplier) ApplyToJob(_ context.Context, jobURL, platform string, data types.ApplicationData) types.ApplicationResult {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.calls = append(f.calls, jobURL)
	if f.names == nil {
		f.names = map[string]string{}
	}
	f.names[jobURL] = data.FullName
	f.mu.Unlock()

	if f.outcome != nil {
		return f.outcome(jobURL, platform)
	}
	return types.ApplicationResult{Success: true, Method: types.MethodAutomated, Platform: platform}
}

const validBatch = `{
	"concurrency": 3,
	"data": {"full_name": "Ada Lovelace", "email": "ada@example.com", "phone": "555", "resume_url": "https://cdn.example.com/cv.pdf"},
	"jobs": [
		{"job_url": "https://boards.greenhouse.io/acme/jobs/1", "platform": "greenhouse"},
		{"job_url": "https://jobs.lever.co/acme/2", "platform": "lever", "data": {"full_name": "Grace Hopper", "email": "grace@example.com", "phone": "555", "resume_url": "https://cdn.example.com/g.pdf"}},
		{"job_url": "https://careers.example.com/3", "platform": "unknown-vendor"}
	]
}`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(validBatch))
	require.NoError(t, err)
	assert.Equal(t, 3, f.Concurrency)
	assert.Equal(t, "Ada Lovelace", f.Data.FullName)
	require.Len(t, f.Jobs, 3)
	assert.Nil(t, f.Jobs[0].Data)
	require.NotNil(t, f.Jobs[1].Data)
	assert.Equal(t, "Grace Hopper", f.Jobs[1].Data.FullName)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"malformed", `{"jobs": [`},
		{"empty jobs", `{"jobs": []}`},
		{"missing job url", `{"jobs": [{"platform": "lever"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid batch file")
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	require.NoError(t, os.WriteFile(path, []byte(validBatch), 0644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Jobs, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRunner_Run(t *testing.T) {
	f, err := Parse([]byte(validBatch))
	require.NoError(t, err)

	applier := &fakeApplier{outcome: func(jobURL, platform string) types.ApplicationResult {
		if platform == "unknown-vendor" {
			return types.ApplicationResult{Method: types.MethodRedirect, RedirectURL: jobURL, Platform: platform}
		}
		return types.ApplicationResult{Success: true, Method: types.MethodAutomated, Platform: platform}
	}}

	summary := NewRunner(applier, 0, nil).Run(context.Background(), f)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Automated)
	assert.Equal(t, 1, summary.Redirected)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Items, 3)
	for i, item := range summary.Items {
		assert.Equal(t, i, item.Index)
		assert.Equal(t, f.Jobs[i].JobURL, item.JobURL, "items keep input order")
	}
	assert.Equal(t, "unknown-vendor", summary.Items[2].Result.Platform)

	assert.Equal(t, "Ada Lovelace", applier.names["https://boards.greenhouse.io/acme/jobs/1"])
	assert.Equal(t, "Grace Hopper", applier.names["https://jobs.lever.co/acme/2"], "per-job data overrides the shared applicant")
}

func TestRunner_RespectsConcurrency(t *testing.T) {
	f := &File{}
	for i := 0; i < 12; i++ {
		f.Jobs = append(f.Jobs, Job{JobURL: "https://boards.greenhouse.io/acme/jobs/" + string(rune('a'+i)), Platform: "greenhouse"})
	}

	applier := &fakeApplier{}
	summary := NewRunner(applier, 2, nil).Run(context.Background(), f)

	assert.Equal(t, 12, summary.Automated)
	assert.Len(t, applier.calls, 12)
	assert.LessOrEqual(t, applier.peak.Load(), int32(2))
}

func TestRunner_FailuresDoNotAbortBatch(t *testing.T) {
	f := &File{Jobs: []Job{
		{JobURL: "https://a.example.com", Platform: "greenhouse"},
		{JobURL: "https://b.example.com", Platform: "greenhouse"},
		{JobURL: "https://c.example.com", Platform: "greenhouse"},
	}}
	applier := &fakeApplier{outcome: func(jobURL, _ string) types.ApplicationResult {
		if jobURL == "https://a.example.com" {
			return types.ApplicationResult{Method: types.MethodFailed, Error: "boom", RedirectURL: jobURL}
		}
		return types.ApplicationResult{Success: true, Method: types.MethodAutomated}
	}}

	summary := NewRunner(applier, 1, nil).Run(context.Background(), f)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Automated)
	assert.Len(t, applier.calls, 3)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Item{
		{Result: types.ApplicationResult{Method: types.MethodAutomated}},
		{Result: types.ApplicationResult{Method: types.MethodRedirect}},
		{Result: types.ApplicationResult{Method: types.MethodFailed}},
		{Result: types.ApplicationResult{Method: types.MethodFailed}},
	})
	assert.Equal(t, Summary{Total: 4, Automated: 1, Redirected: 1, Failed: 2, Items: s.Items}, s)
}
