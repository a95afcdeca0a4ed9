package vad

import "fmt"

// Config tunes the speech segmentation engine. The two thresholds form a
// hysteresis band: frames scoring at or above PositiveSpeechThreshold
// count as speech, frames below NegativeSpeechThreshold count as
// silence, and frames in between extend whichever run is in progress.
type Config struct {
	// PositiveSpeechThreshold is the probability at or above which a
	// frame counts as speech.
	PositiveSpeechThreshold float32 `mapstructure:"positive_speech_threshold"`
	// NegativeSpeechThreshold is the probability below which a frame
	// counts as silence.
	NegativeSpeechThreshold float32 `mapstructure:"negative_speech_threshold"`
	// PreSpeechPadFrames is how many frames before a detected onset are
	// kept, so the leading edge of an utterance is not clipped.
	PreSpeechPadFrames int `mapstructure:"pre_speech_pad_frames"`
	// MinSpeechFrames is the minimum number of speech frames an
	// utterance needs before it is delivered instead of discarded as a
	// misfire.
	MinSpeechFrames int `mapstructure:"min_speech_frames"`
	// RedemptionFrames is how many silence frames after an onset are
	// tolerated before the utterance is considered finished.
	RedemptionFrames int `mapstructure:"redemption_frames"`
	// FrameSamples is the number of samples per analysis frame.
	FrameSamples int `mapstructure:"frame_samples"`
	// SampleRate of the capture stream in Hz.
	SampleRate int `mapstructure:"sample_rate"`
}

// DefaultConfig returns the tuning used by the stock engine.
func DefaultConfig() Config {
	return Config{
		PositiveSpeechThreshold: 0.8,
		NegativeSpeechThreshold: 0.5,
		PreSpeechPadFrames:      8,
		MinSpeechFrames:         3,
		RedemptionFrames:        10,
		FrameSamples:            512,
		SampleRate:              16000,
	}
}

// Validate checks internal consistency and fills zero values with
// defaults.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.PositiveSpeechThreshold == 0 {
		c.PositiveSpeechThreshold = def.PositiveSpeechThreshold
	}
	if c.NegativeSpeechThreshold == 0 {
		c.NegativeSpeechThreshold = def.NegativeSpeechThreshold
	}
	if c.PreSpeechPadFrames == 0 {
		c.PreSpeechPadFrames = def.PreSpeechPadFrames
	}
	if c.MinSpeechFrames == 0 {
		c.MinSpeechFrames = def.MinSpeechFrames
	}
	if c.RedemptionFrames == 0 {
		c.RedemptionFrames = def.RedemptionFrames
	}
	if c.FrameSamples <= 0 {
		c.FrameSamples = def.FrameSamples
	}
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}

	if c.NegativeSpeechThreshold >= c.PositiveSpeechThreshold {
		return fmt.Errorf("negative_speech_threshold %.2f must be below positive_speech_threshold %.2f",
			c.NegativeSpeechThreshold, c.PositiveSpeechThreshold)
	}
	if c.PositiveSpeechThreshold > 1 {
		return fmt.Errorf("positive_speech_threshold %.2f must not exceed 1", c.PositiveSpeechThreshold)
	}
	return nil
}
