package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-reply-automation/internal/domain"
	"review-reply-automation/internal/identity"
	"review-reply-automation/internal/processor"
	"review-reply-automation/internal/runner"
	"review-reply-automation/internal/storage"
)

const testConfig = `
log:
  level: ERROR
  output: stderr
platforms:
  baemin:
    endpoint: stdio://storefront-mcp
    identity_fields:
      order_id: true
      rating: true
stores:
  - code: s1
    name: Test Kitchen
    platform: baemin
`

// setupEnv points configuration at a temp config file and database.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))

	dsn := filepath.Join(dir, "replies.db")
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("ENV_PATH", filepath.Join(dir, "missing.env"))
	t.Setenv("DATABASE_DSN", dsn)
	t.Setenv("LOG_LEVEL", "ERROR")
	return dsn
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := New()
	app.SetVersion("1.2.3", "abc123", "2026-01-01")

	var out bytes.Buffer
	app.rootCmd.SetOut(&out)
	app.rootCmd.SetErr(&out)
	app.rootCmd.SetArgs(args)
	err := app.rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "replier version 1.2.3")
	assert.Contains(t, out, "commit: abc123")
	assert.Contains(t, out, "built: 2026-01-01")
}

func TestIdentityCmd_UsesPlatformFields(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "identity", "--store", "s1", "--author", "kim", "--text", "  very   tasty ", "--order", "A-1", "--rating", "5")
	require.NoError(t, err)

	want := identity.NewResolver(identity.Fields{OrderID: true, Rating: true}).Fingerprint(domain.RawReview{
		StoreCode: "s1",
		Author:    "kim",
		Text:      "very tasty",
		OrderID:   "A-1",
		Rating:    5,
	})
	assert.Equal(t, want, strings.TrimSpace(out))
}

func TestIdentityCmd_Errors(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "identity", "--store", "unknown", "--author", "kim")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store")

	_, err = execute(t, "identity", "--store", "s1", "--platform", "yogiyo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown platform")

	_, err = execute(t, "identity", "--store", "s1", "--date", "yesterday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --date")
}

func TestRecordCmds(t *testing.T) {
	dsn := setupEnv(t)

	repo, err := storage.NewSQLiteRepository(dsn)
	require.NoError(t, err)
	rec := &domain.ReviewRecord{
		Identity:     "abc",
		StoreCode:    "s1",
		PlatformCode: "baemin",
		StoreName:    "Test Kitchen",
		Author:       "kim",
		Rating:       2,
		ReviewText:   "cold",
		ReviewDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:       domain.StatusFailed,
		RetryCount:   3,
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.Upsert(context.Background(), rec))
	require.NoError(t, repo.Close())

	out, err := execute(t, "record", "get", "abc")
	require.NoError(t, err)
	assert.Contains(t, out, "status:      FAILED")
	assert.Contains(t, out, "retries:     3")

	out, err = execute(t, "record", "clear", "abc")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared retries for abc")

	out, err = execute(t, "record", "get", "abc")
	require.NoError(t, err)
	assert.Contains(t, out, "retries:     0")

	out, err = execute(t, "record", "list", "--store", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "abc  FAILED")

	out, err = execute(t, "record", "list", "--store", "s1", "--status", "answered")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = execute(t, "record", "list", "--store", "s1", "--status", "bogus")
	require.Error(t, err)

	_, err = execute(t, "record", "get", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no record for missing")
}

func TestListStatuses(t *testing.T) {
	got, err := listStatuses("")
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.Status{domain.StatusFailed, domain.StatusForbiddenContent, domain.StatusSubmissionError}, got)

	got, err = listStatuses("needs_human")
	require.NoError(t, err)
	assert.Equal(t, []domain.Status{domain.StatusNeedsHuman}, got)
}

func TestRenderSummary(t *testing.T) {
	codes := []string{"s1", "s2"}
	results := map[string]runner.Result{
		"s1": {Stats: processor.RunStats{Store: "s1", Listed: 3, Answered: 2, Deferred: 1}},
		"s2": {Stats: processor.RunStats{Store: "s2"}, Err: errors.New("list pending reviews: boom")},
	}

	out := renderSummary(codes, results, false)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[1], "s1"))
	assert.Contains(t, lines[1], "ok")
	assert.Contains(t, lines[1], "answered=2")
	assert.Contains(t, lines[2], "error")
	assert.Contains(t, lines[3], "boom")
	assert.Contains(t, lines[4], "TOTAL")
	assert.Contains(t, lines[4], "listed=3 answered=2 deferred=1")
	assert.NotContains(t, out, "\x1b[")
}

func TestNewMux(t *testing.T) {
	ready := false
	srv := httptest.NewServer(newMux(func() bool { return ready }))
	defer srv.Close()

	get := func(path string) int {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get("/health/live"))
	assert.Equal(t, http.StatusServiceUnavailable, get("/health/ready"))
	ready = true
	assert.Equal(t, http.StatusOK, get("/health/ready"))
	assert.Equal(t, http.StatusOK, get("/metrics"))
}
