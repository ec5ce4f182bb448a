package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/auto-apply/internal/selector"
)

func TestBuiltin_Valid(t *testing.T) {
	for _, s := range Builtin() {
		t.Run(s.ID, func(t *testing.T) {
			require.NoError(t, s.Validate())
			assert.NotEmpty(t, s.Fields.Email, "every platform collects an email")
			assert.NotEmpty(t, s.Fields.Resume, "every platform accepts a resume")
		})
	}
}

func TestLookup_CaseInsensitiveAndAliases(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		input    string
		expected string
	}{
		{"greenhouse", Greenhouse},
		{"Greenhouse", Greenhouse},
		{"  GREENHOUSE ", Greenhouse},
		{"greenhouse.io", Greenhouse},
		{"https://boards.greenhouse.io/acme/jobs/1", Greenhouse},
		{"lever", Lever},
		{"jobs.lever.co", Lever},
		{"Lever.co", Lever},
		{"indeed", Indeed},
		{"www.indeed.com", Indeed},
		{"uk.indeed.com", Indeed},
		{"LinkedIn", LinkedIn},
		{"linkedin.com", LinkedIn},
		{"workday", Workday},
		{"acme.wd5.myworkdayjobs.com", Workday},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, ok := r.Lookup(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.expected, s.ID)
		})
	}
}

func TestLookup_Unsupported(t *testing.T) {
	r := DefaultRegistry()
	for _, input := range []string{"", "unknown-vendor", "example.com", "notgreenhouse.io.evil"} {
		t.Run(input, func(t *testing.T) {
			_, ok := r.Lookup(input)
			assert.False(t, ok)
		})
	}
}

func TestDetect(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		url      string
		expected string
		ok       bool
	}{
		{"https://job-boards.greenhouse.io/doordashusa/jobs/7063751", Greenhouse, true},
		{"https://boards.greenhouse.io/company/jobs/123", Greenhouse, true},
		{"https://jobs.lever.co/company/job-id", Lever, true},
		{"https://company.wd5.myworkdayjobs.com/en-US/External", Workday, true},
		{"https://www.linkedin.com/jobs/view/123", LinkedIn, true},
		{"https://www.indeed.com/viewjob?jk=abc", Indeed, true},
		{"https://example.com/jobs", "", false},
		{"not a url", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			s, ok := r.Detect(tt.url)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, s.ID)
			}
		})
	}
}

func TestRegister_Collisions(t *testing.T) {
	r, err := NewRegistry(greenhouseStrategy())
	require.NoError(t, err)

	assert.Error(t, r.Register(greenhouseStrategy()), "duplicate id")

	clash := leverStrategy()
	clash.Aliases = append(clash.Aliases, "gh")
	assert.Error(t, r.Register(clash), "alias owned by another platform")
}

func TestRegister_Custom(t *testing.T) {
	r := DefaultRegistry()
	custom := &Strategy{
		ID:           "ashby",
		Aliases:      []string{"jobs.ashbyhq.com"},
		Domains:      []string{"ashbyhq.com"},
		LoadMarker:   selector.CSS("form"),
		Submit:       selector.CSS("button[type='submit']"),
		Confirmation: Confirmation{Sentinel: "ashby_submitted"},
	}
	require.NoError(t, r.Register(custom))

	s, ok := r.Lookup("ASHBY")
	require.True(t, ok)
	assert.Same(t, custom, s)
	assert.Contains(t, r.IDs(), "ashby")
	assert.Len(t, r.Strategies(), 6)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Strategy)
	}{
		{"missing id", func(s *Strategy) { s.ID = "" }},
		{"missing load marker", func(s *Strategy) { s.LoadMarker = nil }},
		{"missing submit", func(s *Strategy) { s.Submit = nil }},
		{"apply required without selectors", func(s *Strategy) { s.ApplyRequired = true; s.ApplyButton = nil }},
		{"split name without first name", func(s *Strategy) { s.Fields.FirstName = nil }},
		{"missing sentinel", func(s *Strategy) { s.Confirmation.Sentinel = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := greenhouseStrategy()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "greenhouse.io", NormalizeKey("HTTPS://WWW.Greenhouse.io/jobs"))
	assert.Equal(t, "lever.co", NormalizeKey("lever.co/acme"))
	assert.Equal(t, "indeed", NormalizeKey(" Indeed "))
	assert.Equal(t, "", NormalizeKey("   "))
}

func TestIDs_Sorted(t *testing.T) {
	assert.Equal(t, []string{"greenhouse", "indeed", "lever", "linkedin", "workday"}, DefaultRegistry().IDs())
}

func TestDetectAuthWall(t *testing.T) {
	linkedIn := linkedInStrategy()
	greenhouse := greenhouseStrategy()

	tests := []struct {
		name     string
		strategy *Strategy
		url      string
		html     string
		want     bool
	}{
		{
			name:     "url signal",
			strategy: linkedIn,
			url:      "https://www.linkedin.com/authwall?trk=x",
			want:     true,
		},
		{
			name:     "selector signal",
			strategy: linkedIn,
			url:      "https://www.linkedin.com/jobs/view/1",
			html:     `<html><body><form class="login__form"><input id="session_key"></form></body></html>`,
			want:     true,
		},
		{
			name:     "phrase signal",
			strategy: linkedIn,
			url:      "https://www.linkedin.com/jobs/view/1",
			html:     `<html><body><div class="top-card-layout">Senior Engineer</div><p>Sign in   to apply</p></body></html>`,
			want:     true,
		},
		{
			name:     "generic password form",
			strategy: greenhouse,
			url:      "https://boards.greenhouse.io/acme/jobs/1",
			html:     `<html><body><form><input type="email"><input type="password"></form></body></html>`,
			want:     true,
		},
		{
			name:     "public application form",
			strategy: greenhouse,
			url:      "https://boards.greenhouse.io/acme/jobs/1",
			html:     `<html><body><form id="application-form"><input id="first_name"></form></body></html>`,
			want:     false,
		},
		{
			name:     "phrase inside script is ignored",
			strategy: linkedIn,
			url:      "https://www.linkedin.com/jobs/view/1",
			html:     `<html><body><script>var s = "sign in to apply";</script><div>Job</div></body></html>`,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason, err := tt.strategy.DetectAuthWall(tt.url, tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.want {
				assert.NotEmpty(t, reason)
			}
		})
	}
}
