package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-reply-automation/internal/config"
	"review-reply-automation/internal/llm"
	"review-reply-automation/internal/processor"
)

type fakeStoreRunner struct {
	mu      sync.Mutex
	active  atomic.Int32
	peak    int32
	failFor string
}

func (f *fakeStoreRunner) RunStore(_ context.Context, code string) (processor.RunStats, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	f.mu.Lock()
	f.peak = max(f.peak, n)
	f.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	if code == f.failFor {
		return processor.RunStats{}, errors.New("listing failed")
	}
	return processor.RunStats{Listed: 1, Answered: 1}, nil
}

func TestRunAll_ParallelLimitAndIsolation(t *testing.T) {
	sr := &fakeStoreRunner{failFor: "B"}
	results := RunAll(context.Background(), sr, []string{"A", "B", "C", "D"}, 2)

	require.Len(t, results, 4)
	assert.Error(t, results["B"].Err)
	for _, code := range []string{"A", "C", "D"} {
		assert.NoError(t, results[code].Err)
		assert.Equal(t, 1, results[code].Stats.Answered)
		assert.Equal(t, code, results[code].Stats.Store)
	}
	assert.LessOrEqual(t, sr.peak, int32(2))
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Platforms = map[string]config.PlatformConfig{
		"baemin": {Name: "baemin", Endpoint: "http://localhost:9000/mcp", DelayDays: 1, HumanDelayDays: 2},
	}
	cfg.Stores = []config.StoreConfig{
		{Code: "S1", Name: "One", Platform: "baemin", Timezone: "UTC"},
		{Code: "S2", Name: "Two", Platform: "baemin", Timezone: "UTC", Disabled: true},
		{Code: "S3", Name: "Three", Platform: "missing", Timezone: "UTC"},
	}
	return cfg
}

func TestStoreCodes(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, []string{"S1", "S3"}, StoreCodes(cfg))
	assert.Equal(t, []string{"S1"}, StoreCodes(cfg, "S1", "S2"))
}

func TestRunner_Session(t *testing.T) {
	cfg := testConfig()
	model := llm.ClientFunc(func(context.Context, llm.Request) (string, error) { return "", nil })
	r, err := New(cfg, nil, model)
	require.NoError(t, err)
	defer r.Close()

	s, err := r.Session("S1")
	require.NoError(t, err)
	assert.Equal(t, "S1", s.Code)
	assert.Equal(t, 1, s.Escalation.DelayDays)
	assert.NotNil(t, s.Adapter)
	assert.Equal(t, time.UTC, s.Location)

	_, err = r.Session("S3")
	assert.ErrorContains(t, err, "unknown platform")

	_, err = r.Session("nope")
	assert.ErrorContains(t, err, "unknown store")
}

func TestRunner_WarmupUnknownStore(t *testing.T) {
	model := llm.ClientFunc(func(context.Context, llm.Request) (string, error) { return "", nil })
	r, err := New(testConfig(), nil, model)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 0, r.Warmup([]string{"nope"}))
	assert.True(t, r.Healthy())
}

func TestNew_InvalidSlangPattern(t *testing.T) {
	cfg := testConfig()
	cfg.Reply.SlangPatterns = []string{"("}
	_, err := New(cfg, nil, nil)
	assert.Error(t, err)
}
