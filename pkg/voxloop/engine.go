// Package voxloop assembles the turn-taking engine: audio device
// manager, speech detector, playback controller, backend dispatcher,
// and the coordinator that sequences them.
package voxloop

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/lumenvoice/voxloop/pkg/audioctx"
	"github.com/lumenvoice/voxloop/pkg/dispatch"
	"github.com/lumenvoice/voxloop/pkg/logging"
	"github.com/lumenvoice/voxloop/pkg/metrics"
	"github.com/lumenvoice/voxloop/pkg/observers"
	"github.com/lumenvoice/voxloop/pkg/playback"
	"github.com/lumenvoice/voxloop/pkg/redact"
	"github.com/lumenvoice/voxloop/pkg/runner"
	"github.com/lumenvoice/voxloop/pkg/turn"
	"github.com/lumenvoice/voxloop/pkg/vad"
)

// Engine owns the full capture-to-playback loop for one conversation.
type Engine struct {
	cfg         Config
	manager     *audioctx.Manager
	player      *playback.Controller
	coordinator *turn.Coordinator
	detector    vad.Detector
	source      *vad.MicSource
	dispatcher  dispatch.Dispatcher
	runner      *runner.LifecycleRunner
	asyncObs    *metrics.AsyncObserver
	timelineObs *observers.TimelineObserver
	usageObs    *observers.UsageObserver
}

// EngineOptions configures construction. Zero-value fields fall back to
// the stock implementations: energy VAD model, microphone source, and
// a dispatcher built from Config.Backend.
type EngineOptions struct {
	Config     Config
	Dispatcher dispatch.Dispatcher
	Model      vad.Model
	Transports *TransportRegistry
	// StatusSinks receive every state transition.
	StatusSinks []turn.StatusSink
	// Observers are appended to the stock metrics fan-out.
	Observers []metrics.Observer
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	SetDefaultLogger(cfg.LogLevel)
	redact.SetEnabled(cfg.Privacy.RedactPII)

	slog.Info("voxloop_init",
		"transport", cfg.Backend.Transport,
		"voice_id", cfg.Backend.VoiceID,
		"sample_rate", cfg.Engine.SampleRate,
	)

	e := &Engine{cfg: cfg}

	logObs := metrics.Observer(observers.NewLoggerObserver(slog.Default()))
	if r := cfg.Observability.MetricsSampleRate; r < 1 {
		logObs = metrics.NewSamplingObserver(logObs, r)
	}
	obsList := []metrics.Observer{
		observers.NewLatencyObserver(slog.Default()),
		logObs,
	}
	if dir := strings.TrimSpace(cfg.Observability.ArtifactsDir); dir != "" {
		if cfg.Observability.RetentionDays > 0 {
			_, _ = observers.PurgeArtifacts(dir, time.Duration(cfg.Observability.RetentionDays)*24*time.Hour)
		}
		e.timelineObs = observers.NewTimelineObserver(dir)
		e.usageObs = observers.NewUsageObserver(dir, cfg.Engine.SampleRate)
		obsList = append(obsList, e.timelineObs, e.usageObs)
	}
	obsList = append(obsList, opts.Observers...)
	e.asyncObs = metrics.NewAsyncObserver(observers.NewMultiObserver(obsList...), 2048)

	e.manager = audioctx.NewManager(cfg.Engine.SampleRate,
		logging.NewComponentLogger(slog.Default(), "audioctx"))
	e.player = playback.NewController(func() (playback.Sink, error) {
		return e.manager.Ensure()
	}, logging.NewComponentLogger(slog.Default(), "playback"))

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		registry := opts.Transports
		if registry == nil {
			registry = NewTransportRegistry()
		}
		var err error
		dispatcher, err = registry.Build(cfg.Backend)
		if err != nil {
			return nil, err
		}
	}
	e.dispatcher = dispatcher

	e.coordinator = turn.NewCoordinator(turn.Options{
		Dispatcher: dispatcher,
		Player:     e.player,
		VoiceID:    cfg.Backend.VoiceID,
		SampleRate: cfg.Engine.SampleRate,
		Observer:   e.asyncObs,
		Logger:     logging.NewComponentLogger(slog.Default(), "turn"),
	})
	for _, sink := range opts.StatusSinks {
		if sink != nil {
			e.coordinator.AddStatusSink(sink)
		}
	}

	model := opts.Model
	if model == nil {
		model = vad.NewEnergyModel(0)
	}
	e.source = vad.NewMicSource(e.manager, cfg.VAD.FrameSamples)
	detector, err := vad.NewFrameDetector(cfg.VAD, model, e.source, e.coordinator.Callbacks())
	if err != nil {
		return nil, err
	}
	e.detector = detector
	e.coordinator.BindDetector(detector)

	hooks := runner.Hooks{
		OnStart: func() {
			slog.Info("engine_ready",
				"dispatcher", dispatcher.Name(),
				"voice_id", cfg.Backend.VoiceID,
			)
		},
		OnStop: func() {
			if e.asyncObs != nil {
				e.asyncObs.Close()
			}
			if e.timelineObs != nil {
				_ = e.timelineObs.Close()
			}
			if e.usageObs != nil {
				_ = e.usageObs.Close()
			}
			slog.Info("shutdown", "goroutines", runtime.NumGoroutine())
		},
	}
	e.runner = runner.NewLifecycleRunner(runner.DrainerFunc(e.drain), hooks, 10*time.Second)

	return e, nil
}

// Start brings the engine up and blocks a background goroutine on the
// context. The engine begins in Idle; call Arm to start listening.
func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		_ = e.runner.Run(ctx)
	}()
	return nil
}

// Stop drains and shuts the engine down.
func (e *Engine) Stop() error {
	return e.runner.Stop()
}

func (e *Engine) drain() error {
	e.coordinator.Disarm()
	_ = e.source.Close()
	return e.manager.Close()
}

// Arm starts a capture cycle; see turn.Coordinator.Arm.
func (e *Engine) Arm(ctx context.Context) error {
	return e.coordinator.Arm(ctx)
}

// Disarm pauses the engine; see turn.Coordinator.Disarm.
func (e *Engine) Disarm() {
	e.coordinator.Disarm()
}

// State returns the current turn phase.
func (e *Engine) State() turn.State {
	return e.coordinator.State()
}

// AddStatusSink registers an additional listener for state changes.
func (e *Engine) AddStatusSink(sink turn.StatusSink) {
	e.coordinator.AddStatusSink(sink)
}

// SetVoice switches the voice sent with subsequent turns.
func (e *Engine) SetVoice(voiceID string) {
	e.coordinator.SetVoice(voiceID)
}

// History returns the completed exchanges of this session.
func (e *Engine) History() []turn.Exchange {
	return e.coordinator.History()
}

// Coordinator exposes the underlying coordinator for embedders.
func (e *Engine) Coordinator() *turn.Coordinator {
	return e.coordinator
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// SetDefaultLogger installs the shared JSON handler at the given level.
func SetDefaultLogger(level string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	slog.SetDefault(logging.InitLogger(lvl))
}
