package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/auto-apply/internal/batch"
	"github.com/jonathan/auto-apply/internal/browser/browsertest"
	"github.com/jonathan/auto-apply/internal/config"
	"github.com/jonathan/auto-apply/internal/metrics"
	"github.com/jonathan/auto-apply/internal/server"
	"github.com/jonathan/auto-apply/internal/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("AWS_REGION", "")

	cfg, err := loadConfig("")
	require.NoError(t, err)

	defaults := config.Defaults()
	assert.Equal(t, defaults.Port, cfg.Port)
	assert.Equal(t, defaults.Concurrency, cfg.Concurrency)
	assert.Equal(t, "development", cfg.Environment)
	assert.Empty(t, cfg.S3Region)
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AWS_REGION", "eu-west-1")
	path := writeFile(t, "config.json", `{"name": "Ada Lovelace", "concurrency": 4, "navigation_timeout_ms": 5000}`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", cfg.Name)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 5000, cfg.NavigationTimeoutMs)
	assert.Equal(t, config.Defaults().ProbeTimeoutMs, cfg.ProbeTimeoutMs)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "eu-west-1", cfg.S3Region)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = loadConfig(writeFile(t, "bad.json", `{"concurrency": 99}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency")

	_, err = loadConfig(writeFile(t, "broken.json", `{not json`))
	assert.Error(t, err)
}

func TestApplicantFromConfig(t *testing.T) {
	cfg := config.Config{
		Name:        "Ada Lovelace",
		Email:       "ada@example.com",
		Phone:       "+1 555 0100",
		ResumeURL:   "s3://resumes/ada.pdf",
		LinkedInURL: "https://linkedin.com/in/ada",
	}

	data, err := applicantFromConfig(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", data.FullName)
	assert.Equal(t, "s3://resumes/ada.pdf", data.ResumeURL)
	assert.Empty(t, data.CoverLetter)

	letter := writeFile(t, "letter.txt", "Dear hiring team,")
	data, err = applicantFromConfig(cfg, letter)
	require.NoError(t, err)
	assert.Equal(t, "Dear hiring team,", data.CoverLetter)

	_, err = applicantFromConfig(cfg, filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestBatchLimit(t *testing.T) {
	cfg := config.Config{Concurrency: 2}
	tests := []struct {
		name      string
		flagSet   bool
		flagValue int
		file      int
		want      int
		wantErr   bool
	}{
		{"flag wins", true, 6, 3, 6, false},
		{"file when flag unset", false, 0, 3, 3, false},
		{"config fallback", false, 0, 0, 2, false},
		{"flag too low", true, 0, 3, 0, true},
		{"flag too high", true, config.MaxConcurrency + 1, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := batchLimit(tt.flagSet, tt.flagValue, &batch.File{Concurrency: tt.file}, cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildEngine_UnsupportedPlatformNeverLaunches(t *testing.T) {
	tests := []struct {
		name string
		rec  *metrics.Recorder
	}{
		{"with recorder", metrics.New()},
		{"without recorder", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.ScratchDir = t.TempDir()
			launcher := &browsertest.Launcher{}

			engine, err := buildEngine(cfg, launcher, tt.rec, zap.NewNop())
			require.NoError(t, err)

			res := engine.ApplyToJob(context.Background(), "https://careers.example.com/jobs/1", "monster", types.ApplicationData{
				FullName:  "Ada Lovelace",
				Email:     "ada@example.com",
				Phone:     "1",
				ResumeURL: "https://cdn.example.com/ada.pdf",
			})

			assert.False(t, res.Success)
			assert.Equal(t, types.MethodRedirect, res.Method)
			assert.Equal(t, "https://careers.example.com/jobs/1", res.RedirectURL)
			assert.Zero(t, launcher.Launches())
		})
	}
}

func TestNewLauncher(t *testing.T) {
	cfg := config.Config{ShowBrowser: true, UserAgent: "agent/1.0", ChromePath: "/opt/chrome"}

	launcher := newLauncher(cfg, zap.NewNop())

	assert.False(t, launcher.Headless)
	assert.Equal(t, "agent/1.0", launcher.UserAgent)
	assert.Equal(t, "/opt/chrome", launcher.ExecPath)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPlatformsCommand(t *testing.T) {
	out, err := execute(t, "platforms")
	require.NoError(t, err)
	assert.Contains(t, out, "SUPPORTED PLATFORMS")
	assert.Contains(t, out, "greenhouse")
	assert.Contains(t, out, "workday")
}

func TestPlatformsCommand_JSON(t *testing.T) {
	t.Cleanup(func() { platformsJSON = false })

	out, err := execute(t, "platforms", "--json")
	require.NoError(t, err)

	var ids []string
	require.NoError(t, json.Unmarshal([]byte(out), &ids))
	assert.Contains(t, ids, "lever")
	assert.Contains(t, ids, "linkedin")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret-0123456789")
	t.Setenv("JWT_ISSUER", "")
	t.Setenv("JWT_EXPIRATION_HOURS", "")

	out, err := execute(t, "token", "--client", "scheduler")
	require.NoError(t, err)

	jwtCfg, err := config.NewJWTConfig()
	require.NoError(t, err)
	claims, err := server.NewJWTService(jwtCfg).ValidateToken(string(bytes.TrimSpace([]byte(out))))
	require.NoError(t, err)
	assert.Equal(t, "scheduler", claims.ClientID)
}

func TestTokenCommand_NoSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := execute(t, "token", "--client", "scheduler")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidateCommand(t *testing.T) {
	t.Cleanup(func() { validateSchema = "" })

	valid := writeFile(t, "jobs.json", `{
		"data": {"full_name": "Ada Lovelace", "email": "ada@example.com", "phone": "1", "resume_url": "https://cdn.example.com/a.pdf"},
		"jobs": [{"job_url": "https://jobs.lever.co/acme/1", "platform": "lever"}]
	}`)
	out, err := execute(t, "validate", "--file", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation passed: 1 jobs")

	invalid := writeFile(t, "bad.json", `{"jobs": [{"job_url": "https://jobs.lever.co/acme/1"}]}`)
	out, err = execute(t, "validate", "--file", invalid)
	require.Error(t, err)
	assert.Contains(t, out, "Validation failed")

	schema := writeFile(t, "custom.schema.json", `{"type": "object", "required": ["jobs"]}`)
	out, err = execute(t, "validate", "--file", invalid, "--schema", schema)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation passed")
}
