package observers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lumenvoice/voxloop/pkg/metrics"
	"github.com/lumenvoice/voxloop/pkg/wav"
)

// UsageSummary is the session roll-up written by UsageObserver.
type UsageSummary struct {
	Turns            int     `json:"turns"`
	Misfires         int     `json:"misfires"`
	StaleResults     int     `json:"stale_results"`
	CapturedAudioSec float64 `json:"captured_audio_seconds"`
	Exited           bool    `json:"exited"`
	RecordedAtUTC    string  `json:"recorded_at_utc"`
}

// UsageObserver accumulates session totals: how many turns went out, how
// much audio was captured, how often the detector misfired. The summary
// lands as one JSON file when the observer closes.
type UsageObserver struct {
	dir        string
	sampleRate int

	mu   sync.Mutex
	stat UsageSummary
}

func NewUsageObserver(dir string, sampleRate int) *UsageObserver {
	if sampleRate <= 0 {
		sampleRate = wav.DefaultSampleRate
	}
	return &UsageObserver{dir: dir, sampleRate: sampleRate}
}

func (o *UsageObserver) RecordEvent(ev metrics.MetricsEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch ev.Name {
	case "turn_encoded":
		o.stat.Turns++
		// Value is the WAV payload size; data bytes over 16-bit mono
		// samples give the capture duration.
		dataBytes := ev.Value - float64(wav.HeaderSize)
		if dataBytes > 0 {
			o.stat.CapturedAudioSec += dataBytes / float64(2*o.sampleRate)
		}
	case "turn_misfire":
		o.stat.Misfires++
	case "turn_stale_result":
		o.stat.StaleResults++
	case "turn_exit":
		o.stat.Exited = true
	}
}

// Summary returns a snapshot of the totals so far.
func (o *UsageObserver) Summary() UsageSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stat
}

// Close writes the summary file. A blank dir disables persistence.
func (o *UsageObserver) Close() error {
	if strings.TrimSpace(o.dir) == "" {
		return nil
	}
	o.mu.Lock()
	stat := o.stat
	o.mu.Unlock()

	stat.RecordedAtUTC = time.Now().UTC().Format(time.RFC3339)
	b, err := json.MarshalIndent(stat, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	name := "session-" + time.Now().UTC().Format("20060102T150405Z") + ".usage.json"
	return os.WriteFile(filepath.Join(o.dir, name), b, 0o644)
}

var _ metrics.Observer = (*UsageObserver)(nil)
