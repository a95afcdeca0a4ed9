package audioctx

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// captureDevice is the slice of malgo.Device the Input drives. Stop and
// Uninit join the capture worker thread, so they must never run while
// in.mu is held: a data callback parked at the mutex would keep the
// worker from draining and the join would never return.
type captureDevice interface {
	Start() error
	Stop() error
	IsStarted() bool
	Uninit()
}

// Input is a microphone capture device on the shared context. Frames are
// delivered as float32 sample slices of exactly frameSamples each; the
// device captures 32-bit float natively so no requantization happens
// between the hardware and the detector.
type Input struct {
	device captureDevice
	config malgo.DeviceConfig

	frameSamples int
	pending      []float32
	onFrame      func([]float32)

	mu sync.Mutex
}

func newInput(sampleRate, frameSamples int) *Input {
	if frameSamples <= 0 {
		frameSamples = 512
	}
	in := &Input{frameSamples: frameSamples}

	format := malgo.FormatF32
	channels := 1

	in.config = malgo.DefaultDeviceConfig(malgo.Capture)
	in.config.SampleRate = uint32(sampleRate)
	in.config.Capture.Format = format
	in.config.Capture.Channels = uint32(channels)
	in.config.Alsa.NoMMap = 1
	in.config.PerformanceProfile = malgo.LowLatency
	in.config.PeriodSizeInFrames = uint32(frameSamples)
	in.config.Periods = 3

	return in
}

func (in *Input) init(audioContext *malgo.AllocatedContext) error {
	device, err := malgo.InitDevice(audioContext.Context, in.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * 4
			if len(pInput) < n || n == 0 {
				return
			}
			in.consume(pInput[:n])
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	in.device = device
	return nil
}

// Start begins delivering frames to onFrame. Idempotent while started.
func (in *Input) Start(onFrame func([]float32)) error {
	in.mu.Lock()
	device := in.device
	in.onFrame = onFrame
	in.pending = in.pending[:0]
	in.mu.Unlock()

	if device == nil {
		return fmt.Errorf("device not initialized")
	}
	if device.IsStarted() {
		return nil
	}
	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

// Stop halts frame delivery but keeps the device available for the next
// Start. Idempotent. The callback is cleared under in.mu first, then the
// device is stopped with the mutex released: device.Stop joins the
// capture worker, and a data callback parked at in.mu.Lock would wedge
// that join forever.
func (in *Input) Stop() error {
	in.mu.Lock()
	device := in.device
	in.onFrame = nil
	in.pending = in.pending[:0]
	in.mu.Unlock()

	if device == nil {
		return fmt.Errorf("device not initialized")
	}
	if !device.IsStarted() {
		return nil
	}
	if err := device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

// Uninit releases the capture device. Like Stop, the device teardown
// happens with in.mu released.
func (in *Input) Uninit() error {
	in.mu.Lock()
	device := in.device
	in.device = nil
	in.onFrame = nil
	in.pending = nil
	in.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	return nil
}

func (in *Input) consume(raw []byte) {
	in.mu.Lock()
	onFrame := in.onFrame
	if onFrame == nil {
		in.mu.Unlock()
		return
	}

	for i := 0; i+4 <= len(raw); i += 4 {
		in.pending = append(in.pending, math.Float32frombits(binary.LittleEndian.Uint32(raw[i:])))
	}

	var frames [][]float32
	for len(in.pending) >= in.frameSamples {
		frame := make([]float32, in.frameSamples)
		copy(frame, in.pending[:in.frameSamples])
		in.pending = in.pending[in.frameSamples:]
		frames = append(frames, frame)
	}
	in.mu.Unlock()

	for _, frame := range frames {
		onFrame(frame)
	}
}
