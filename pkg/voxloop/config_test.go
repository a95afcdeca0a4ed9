package voxloop

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxloop.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
backend:
  url: http://localhost:8000/process_audio
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Engine.SampleRate != 16000 {
		t.Fatalf("sample rate = %d", cfg.Engine.SampleRate)
	}
	if cfg.VAD.PositiveSpeechThreshold != 0.8 || cfg.VAD.NegativeSpeechThreshold != 0.5 {
		t.Fatalf("vad thresholds = %+v", cfg.VAD)
	}
	if cfg.VAD.SampleRate != 16000 {
		t.Fatalf("vad sample rate = %d", cfg.VAD.SampleRate)
	}
	if cfg.Backend.VoiceID != "Fritz-PlayAI" {
		t.Fatalf("voice id = %q", cfg.Backend.VoiceID)
	}
	if cfg.Backend.Transport != "http" {
		t.Fatalf("transport = %q", cfg.Backend.Transport)
	}
	if !cfg.Privacy.RedactPII {
		t.Fatal("redaction should default on")
	}
	if cfg.Observability.MetricsSampleRate != 1 {
		t.Fatalf("metrics sample rate = %v, want 1", cfg.Observability.MetricsSampleRate)
	}
}

func TestValidateRejectsOutOfRangeSampleRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Observability.MetricsSampleRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected metrics_sample_rate above 1 to be rejected")
	}

	cfg = DefaultConfig()
	cfg.Observability.MetricsSampleRate = -0.1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected negative metrics_sample_rate to be rejected")
	}

	cfg = DefaultConfig()
	cfg.Observability.MetricsSampleRate = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unset metrics_sample_rate should fall back: %v", err)
	}
	if cfg.Observability.MetricsSampleRate != 1 {
		t.Fatalf("unset metrics_sample_rate = %v, want 1", cfg.Observability.MetricsSampleRate)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("VOXLOOP_BACKEND", "http://backend.internal/process_audio")
	path := writeConfig(t, `
backend:
  url: ${VOXLOOP_BACKEND}
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backend.URL != "http://backend.internal/process_audio" {
		t.Fatalf("url = %q", cfg.Backend.URL)
	}
}

func TestLoadConfigRequiresBackendURL(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("missing backend.url accepted")
	}
}

func TestLoadConfigMockTransportNeedsNoURL(t *testing.T) {
	path := writeConfig(t, `
backend:
  transport: mock
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backend.Transport != "mock" {
		t.Fatalf("transport = %q", cfg.Backend.Transport)
	}
}

func TestValidateRejectsSampleRateMismatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VAD.SampleRate = 8000
	if err := cfg.Validate(); err == nil {
		t.Fatal("mismatched sample rates accepted")
	}
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VAD.PositiveSpeechThreshold = 0.4
	cfg.VAD.NegativeSpeechThreshold = 0.6
	if err := cfg.Validate(); err == nil {
		t.Fatal("inverted thresholds accepted")
	}
}
