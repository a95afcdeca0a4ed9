package vad

// Model scores one analysis frame with a speech probability in [0, 1].
// Any concrete detection backend satisfying this contract is
// substitutable, including external neural VAD runtimes.
type Model interface {
	// Score returns the speech probability of a frame.
	Score(frame []float32) (float32, error)
	// Reset clears internal state between capture sessions.
	Reset() error
}

// EnergyModel is the stock scoring backend: RMS energy mapped through a
// soft knee around a reference level. It is deterministic and needs no
// external assets, which keeps the default engine self-contained.
type EnergyModel struct {
	reference float64
}

// DefaultEnergyReference is the RMS of typical near-field speech with
// float32 samples in [-1, 1].
const DefaultEnergyReference = 0.05

func NewEnergyModel(reference float64) *EnergyModel {
	if reference <= 0 {
		reference = DefaultEnergyReference
	}
	return &EnergyModel{reference: reference}
}

func (m *EnergyModel) Score(frame []float32) (float32, error) {
	if len(frame) == 0 {
		return 0, nil
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	energy := sum / float64(len(frame))

	// Frames at the reference level score 0.5; louder frames approach 1.
	ref := m.reference * m.reference
	return float32(energy / (energy + ref)), nil
}

func (m *EnergyModel) Reset() error { return nil }
