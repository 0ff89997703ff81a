package config

import (
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Tools.TimeoutMs != 8000 {
		t.Errorf("tools.timeoutMs = %d, want 8000", cfg.Tools.TimeoutMs)
	}
	if got := *cfg.Tools.RetryMax; got != 2 {
		t.Errorf("tools.retryMax = %d, want 2", got)
	}
	if cfg.Tools.Parallelism != 4 {
		t.Errorf("tools.parallelism = %d, want 4", cfg.Tools.Parallelism)
	}
	if cfg.Tools.Circuit.OpenAfterFailures != 3 {
		t.Errorf("circuit.openAfterFailures = %d, want 3", cfg.Tools.Circuit.OpenAfterFailures)
	}
	if cfg.Tools.Circuit.OpenForMs != 3000 {
		t.Errorf("circuit.openForMs = %d, want 3000", cfg.Tools.Circuit.OpenForMs)
	}
	if cfg.Tools.FamilyParallelism["tmdb"] != 16 {
		t.Errorf("familyParallelism.tmdb = %d, want 16", cfg.Tools.FamilyParallelism["tmdb"])
	}
	if cfg.Cache.TTLShortSec != 60 || cfg.Cache.TTLMediumSec != 300 {
		t.Errorf("cache TTLs = %d/%d, want 60/300", cfg.Cache.TTLShortSec, cfg.Cache.TTLMediumSec)
	}
	if cfg.UX.ProgressUpdateIntervalMs != 900 {
		t.Errorf("ux.progressUpdateIntervalMs = %d, want 900", cfg.UX.ProgressUpdateIntervalMs)
	}
}

func TestParse_ExplicitZeroRetries(t *testing.T) {
	cfg, err := Parse([]byte("tools:\n  retryMax: 0\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := *cfg.Tools.RetryMax; got != 0 {
		t.Errorf("tools.retryMax = %d, want explicit 0 preserved", got)
	}
	if cfg.TuningFor("tmdb_search", "tmdb").RetryMax != 0 {
		t.Error("resolved tuning should honor explicit zero retries")
	}
}

func TestTuningFor_Precedence(t *testing.T) {
	one := 1
	five := 5
	cfg := Default()
	cfg.Tools.PerFamily = map[string]ToolTuning{
		"radarr": {TimeoutMs: 15000, RetryMax: &five},
	}
	cfg.Tools.PerTool = map[string]ToolTuning{
		"radarr_add_movie": {RetryMax: &one},
	}

	got := cfg.TuningFor("radarr_add_movie", "radarr")
	if got.TimeoutMs != 15000 {
		t.Errorf("timeoutMs = %d, want family override 15000", got.TimeoutMs)
	}
	if got.RetryMax != 1 {
		t.Errorf("retryMax = %d, want per-tool override 1", got.RetryMax)
	}
	if got.BackoffBaseMs != 250 {
		t.Errorf("backoffBaseMs = %d, want global default 250", got.BackoffBaseMs)
	}

	other := cfg.TuningFor("radarr_get_movies", "radarr")
	if other.RetryMax != 5 {
		t.Errorf("retryMax = %d, want family override 5", other.RetryMax)
	}
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	if _, err := Parse([]byte("toolz:\n  timeoutMs: 1\n")); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestHedgeDelay(t *testing.T) {
	cfg := Default()
	cfg.Tools.HedgeDelayMsByFamily = map[string]int{"tmdb": 200}

	if got := cfg.HedgeDelay("tmdb"); got != 200*time.Millisecond {
		t.Errorf("HedgeDelay(tmdb) = %v, want 200ms", got)
	}
	if got := cfg.HedgeDelay("radarr"); got != 0 {
		t.Errorf("HedgeDelay(radarr) = %v, want 0", got)
	}
}

func TestValidate_BadFamilyParallelism(t *testing.T) {
	cfg := Default()
	cfg.Tools.FamilyParallelism["plex"] = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}
