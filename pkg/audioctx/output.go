package audioctx

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// DefaultSampleRate is the engine-wide device rate.
const DefaultSampleRate = 16000

// playbackDevice is the slice of malgo.Device the Output drives.
type playbackDevice interface {
	Start() error
	IsStarted() bool
	Uninit()
}

// Output is the shared playback device. Callers queue 16-bit LE mono PCM
// with Write and learn about drain progress through marks; Clear drops
// everything queued so far (hard stop for barge-in).
type Output struct {
	device playbackDevice
	config malgo.DeviceConfig

	sampleRate int

	// bufferBytes is the device-side buffer depth. A byte handed to the
	// data callback is not audible until the device has clocked through
	// this much more audio, so marks are deferred by it.
	bufferBytes int

	queued []byte
	marks  []outputMark

	mu sync.Mutex
}

type outputMark struct {
	position int
	callback func()
}

func newOutput(sampleRate int) *Output {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Output{sampleRate: sampleRate}
}

func (o *Output) init(audioContext *malgo.AllocatedContext) error {
	sampleRate := uint32(o.sampleRate)
	format := malgo.FormatS16
	channels := 1
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	o.config = malgo.DefaultDeviceConfig(malgo.Playback)
	o.config.SampleRate = sampleRate
	o.config.Playback.Format = format
	o.config.Playback.Channels = uint32(channels)
	o.config.Alsa.NoMMap = 1
	o.config.PeriodSizeInFrames = sampleRate / 10
	o.config.Periods = 4
	o.bufferBytes = int(o.config.PeriodSizeInFrames) * int(o.config.Periods) * bytesPerFrame

	device, err := malgo.InitDevice(
		audioContext.Context,
		o.config,
		malgo.DeviceCallbacks{Data: o.feed(bytesPerFrame)},
	)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	o.device = device
	return nil
}

func (o *Output) resume() error {
	if o.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if o.device.IsStarted() {
		return nil
	}
	if err := o.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

// Write queues PCM behind anything already playing.
func (o *Output) Write(pcm []byte) error {
	if o.device == nil {
		return fmt.Errorf("device not initialized")
	}
	o.mu.Lock()
	o.queued = append(o.queued, pcm...)
	o.mu.Unlock()
	return nil
}

// Mark registers a callback fired once every byte queued before the mark
// has drained out of the device, not merely been copied into it: the
// mark position carries the device buffer depth on top of the queue, so
// completion tracks audible playback rather than the last memcpy. Used
// for natural-completion signaling.
func (o *Output) Mark(callback func()) {
	o.mu.Lock()
	o.marks = append(o.marks, outputMark{position: len(o.queued) + o.bufferBytes, callback: callback})
	o.mu.Unlock()
}

// Clear drops all queued audio and fires pending marks immediately, so a
// superseded session still resolves its completion callback.
func (o *Output) Clear() {
	o.mu.Lock()
	o.queued = nil
	pending := o.marks
	o.marks = nil
	o.mu.Unlock()

	for _, mark := range pending {
		go mark.callback()
	}
}

// Pending reports queued-but-unplayed bytes.
func (o *Output) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queued)
}

func (o *Output) uninit() error {
	if o.device == nil {
		return fmt.Errorf("device not initialized")
	}
	o.device.Uninit()
	o.device = nil
	o.Clear()
	return nil
}

func (o *Output) feed(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame
		if need > len(pOutput) {
			need = len(pOutput)
		}

		o.mu.Lock()
		n := copy(pOutput[:need], o.queued)
		o.queued = o.queued[n:]
		for i := n; i < need; i++ {
			pOutput[i] = 0 // underrun plays silence
		}

		var fired []outputMark
		kept := o.marks[:0]
		for _, mark := range o.marks {
			// Marks advance on the device clock (bytes requested), not
			// bytes copied, so an empty queue still drains the
			// device-depth tail before a mark fires.
			mark.position -= need
			if mark.position <= 0 {
				fired = append(fired, mark)
			} else {
				kept = append(kept, mark)
			}
		}
		o.marks = kept
		o.mu.Unlock()

		for _, mark := range fired {
			go mark.callback()
		}
	}
}
