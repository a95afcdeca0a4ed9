package metrics

import "testing"

func TestSamplingObserverThinsStream(t *testing.T) {
	inner := NewMemoryObserver()
	obs := NewSamplingObserver(inner, 0.25)

	for i := 0; i < 100; i++ {
		obs.RecordEvent(MetricsEvent{Name: "turn_speech_start"})
	}
	if got := len(inner.Snapshot()); got != 25 {
		t.Fatalf("sampled events = %d, want 25", got)
	}
}

func TestSamplingObserverFullRatePassesThrough(t *testing.T) {
	inner := NewMemoryObserver()
	obs := NewSamplingObserver(inner, 1)

	for i := 0; i < 10; i++ {
		obs.RecordEvent(MetricsEvent{Name: "turn_response"})
	}
	if got := len(inner.Snapshot()); got != 10 {
		t.Fatalf("events = %d, want 10", got)
	}
}

func TestMemorySnapshotIsCopy(t *testing.T) {
	m := NewMemoryObserver()
	m.RecordEvent(MetricsEvent{Name: "turn_armed"})

	snap := m.Snapshot()
	snap[0].Name = "mutated"
	if got := m.Snapshot()[0].Name; got != "turn_armed" {
		t.Fatalf("snapshot mutation leaked: %q", got)
	}
}
