package observers

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lumenvoice/voxloop/pkg/metrics"
	"github.com/lumenvoice/voxloop/pkg/redact"
)

func turnEvent(name, turnID string, at time.Time, value float64) metrics.MetricsEvent {
	return metrics.MetricsEvent{
		Name:  name,
		Time:  at,
		Value: value,
		Tags:  map[string]string{"turn_id": turnID},
	}
}

func TestTimelineObserverWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)

	obs.RecordEvent(turnEvent("turn_speech_start", "turn-1", time.Now(), 0))
	obs.RecordEvent(turnEvent("turn_encoded", "turn-1", time.Now(), 32044))
	_ = obs.Close()

	b, err := os.ReadFile(filepath.Join(dir, "turn-1.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "turn_speech_start") {
		t.Fatalf("first line = %s", lines[0])
	}
	if !strings.Contains(lines[1], "32044") {
		t.Fatalf("second line = %s", lines[1])
	}
}

func TestTimelineObserverRedactsStringFields(t *testing.T) {
	redact.SetEnabled(true)
	defer redact.SetEnabled(false)

	dir := t.TempDir()
	obs := NewTimelineObserver(dir)
	obs.RecordEvent(metrics.MetricsEvent{
		Name:   "turn_response",
		Time:   time.Now(),
		Tags:   map[string]string{"turn_id": "turn-2"},
		Fields: map[string]any{"transcription": "reach me at jo@example.com"},
	})
	_ = obs.Close()

	b, err := os.ReadFile(filepath.Join(dir, "turn-2.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if strings.Contains(string(b), "jo@example.com") {
		t.Fatal("email leaked into timeline")
	}
	if !strings.Contains(string(b), "[REDACTED_EMAIL]") {
		t.Fatalf("no redaction marker in %s", b)
	}
}

func TestLatencyObserverLogsCompletedTurn(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	obs := NewLatencyObserver(log)

	base := time.Now()
	obs.RecordEvent(turnEvent("turn_speech_start", "turn-9", base, 0))
	obs.RecordEvent(turnEvent("turn_encoded", "turn-9", base.Add(800*time.Millisecond), 0))
	obs.RecordEvent(turnEvent("turn_response", "turn-9", base.Add(2*time.Second), 0))
	obs.RecordEvent(turnEvent("turn_speaking", "turn-9", base.Add(2100*time.Millisecond), 0))
	obs.RecordEvent(turnEvent("turn_playback_done", "turn-9", base.Add(5*time.Second), 0))

	out := buf.String()
	if !strings.Contains(out, "turn_latency") {
		t.Fatalf("no latency line: %s", out)
	}
	if !strings.Contains(out, "capture_ms=800") {
		t.Fatalf("capture_ms missing: %s", out)
	}
	if !strings.Contains(out, "network_ms=1200") {
		t.Fatalf("network_ms missing: %s", out)
	}
	if !strings.Contains(out, "total_ms=5000") {
		t.Fatalf("total_ms missing: %s", out)
	}
}

func TestLatencyObserverDropsMisfires(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	obs := NewLatencyObserver(log)

	obs.RecordEvent(turnEvent("turn_speech_start", "turn-3", time.Now(), 0))
	obs.RecordEvent(turnEvent("turn_misfire", "turn-3", time.Now(), 0))

	if strings.Contains(buf.String(), "turn_latency") {
		t.Fatal("misfire produced a latency line")
	}
	obs.mu.Lock()
	n := len(obs.traces)
	obs.mu.Unlock()
	if n != 0 {
		t.Fatalf("trace leaked: %d entries", n)
	}
}

func TestUsageObserverAccumulates(t *testing.T) {
	obs := NewUsageObserver("", 16000)

	// Two one-second turns at 16 kHz mono 16-bit: 32044-byte payloads.
	obs.RecordEvent(turnEvent("turn_encoded", "a", time.Now(), 32044))
	obs.RecordEvent(turnEvent("turn_encoded", "b", time.Now(), 32044))
	obs.RecordEvent(turnEvent("turn_misfire", "c", time.Now(), 0))
	obs.RecordEvent(turnEvent("turn_exit", "b", time.Now(), 0))

	got := obs.Summary()
	if got.Turns != 2 || got.Misfires != 1 || !got.Exited {
		t.Fatalf("summary = %+v", got)
	}
	if got.CapturedAudioSec < 1.99 || got.CapturedAudioSec > 2.01 {
		t.Fatalf("captured seconds = %f, want ~2", got.CapturedAudioSec)
	}
}

func TestUsageObserverWritesSummary(t *testing.T) {
	dir := t.TempDir()
	obs := NewUsageObserver(dir, 16000)
	obs.RecordEvent(turnEvent("turn_encoded", "a", time.Now(), 32044))
	if err := obs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".usage.json") {
		t.Fatalf("entries = %v", entries)
	}
}

func TestPurgeArtifactsSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)
	for _, name := range []string{"turn-1.jsonl", "keep.txt"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed, err := PurgeArtifacts(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "keep.txt")); err != nil {
		t.Fatal("purge removed a non-artifact file")
	}
}
