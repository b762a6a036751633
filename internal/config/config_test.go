package config

import "testing"

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("KB_TOP_K", "")
	t.Setenv("KB_CANDIDATES", "")
	t.Setenv("KB_FUSION_STRATEGY", "")
	t.Setenv("KB_FUSION_RRF_K", "")
	t.Setenv("EXTRACT_TOP_K", "")
	t.Setenv("EXTRACT_MULTI_VALUE_POLICY", "")

	cfg := Load()
	if cfg.KBTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.KBTopK)
	}
	if cfg.KBCandidates != 10 {
		t.Fatalf("expected default candidates 10, got %d", cfg.KBCandidates)
	}
	if cfg.KBFusionStrategy != "relative_score" {
		t.Fatalf("expected default fusion strategy relative_score, got %q", cfg.KBFusionStrategy)
	}
	if cfg.KBFusionRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.KBFusionRRFK)
	}
	if cfg.ExtractTopK != 6 {
		t.Fatalf("expected default extract top k 6, got %d", cfg.ExtractTopK)
	}
	if cfg.ExtractMultiValuePolicy != "first" {
		t.Fatalf("expected default multi value policy first, got %q", cfg.ExtractMultiValuePolicy)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("KB_FUSION_STRATEGY", "rrf")
	t.Setenv("KB_CANDIDATES", "40")
	t.Setenv("EXTRACT_MULTI_VALUE_POLICY", "reject")
	t.Setenv("INGEST_ASYNC", "true")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")

	cfg := Load()
	if cfg.KBFusionStrategy != "rrf" {
		t.Fatalf("expected fusion strategy override, got %q", cfg.KBFusionStrategy)
	}
	if cfg.KBCandidates != 40 {
		t.Fatalf("expected candidates 40, got %d", cfg.KBCandidates)
	}
	if cfg.ExtractMultiValuePolicy != "reject" {
		t.Fatalf("expected policy reject, got %q", cfg.ExtractMultiValuePolicy)
	}
	if !cfg.IngestAsync {
		t.Fatalf("expected async ingest enabled")
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.APIRateLimitRPS)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("KB_CANDIDATES", "not-a-number")
	t.Setenv("API_RATE_LIMIT_RPS", "fast")

	cfg := Load()
	if cfg.KBCandidates != 10 {
		t.Fatalf("expected fallback candidates 10, got %d", cfg.KBCandidates)
	}
	if cfg.APIRateLimitRPS != 25 {
		t.Fatalf("expected fallback rate limit 25, got %v", cfg.APIRateLimitRPS)
	}
}
