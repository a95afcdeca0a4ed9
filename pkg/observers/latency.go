package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/lumenvoice/voxloop/pkg/metrics"
)

// LatencyObserver reconstructs per-turn phase timings from the event
// stream and logs one summary line when the turn resolves. Turns that
// never complete (misfire, disarm, stale result) are dropped silently.
type LatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*trace
	log    *slog.Logger
}

type trace struct {
	speechStart time.Time
	encoded     time.Time
	response    time.Time
	speaking    time.Time
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		traces: make(map[string]*trace),
		log:    log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	turnID := ""
	if ev.Tags != nil {
		turnID = ev.Tags["turn_id"]
	}
	if turnID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	t := o.traces[turnID]
	if t == nil {
		t = &trace{}
		o.traces[turnID] = t
	}
	switch ev.Name {
	case "turn_speech_start":
		if t.speechStart.IsZero() {
			t.speechStart = ev.Time
		}
	case "turn_encoded":
		if t.encoded.IsZero() {
			t.encoded = ev.Time
		}
	case "turn_response":
		if t.response.IsZero() {
			t.response = ev.Time
		}
	case "turn_speaking":
		if t.speaking.IsZero() {
			t.speaking = ev.Time
		}
	case "turn_playback_done", "turn_exit":
		o.logTurnLocked(turnID, t, ev.Time)
		delete(o.traces, turnID)
	case "turn_misfire", "turn_stale_result", "turn_disarmed":
		delete(o.traces, turnID)
	}
}

func (o *LatencyObserver) logTurnLocked(turnID string, t *trace, end time.Time) {
	o.log.Info("turn_latency",
		"turn_id", turnID,
		"capture_ms", durationMs(t.speechStart, t.encoded),
		"network_ms", durationMs(t.encoded, t.response),
		"first_audio_ms", durationMs(t.response, t.speaking),
		"total_ms", durationMs(t.speechStart, end),
	)
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}
