package store

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"sort"
)

// ScalarQuantizer compresses float32 vectors to int8 using a per-collection
// clip range derived from the 0.99 quantile of absolute values seen during
// training. Values outside the range are clamped, trading a small amount of
// precision at the extremes for a 4x size reduction. The quantized copy is
// kept resident in memory alongside the HNSW graph; it backs Dequantize for
// exact-enough reconstruction rather than replacing the graph's own float32
// vectors, so graph search precision is unaffected.
type ScalarQuantizer struct {
	// Scale maps a float32 magnitude to the int8 range [-127, 127].
	Scale float64

	// Quantile is the clip-range quantile used to compute Scale (0.99).
	Quantile float64

	trained bool
}

// DefaultQuantile matches the quantile used by the quantized collection
// config this quantizer is modeled on (scalar int8, quantile 0.99, resident
// in RAM).
const DefaultQuantile = 0.99

// NewScalarQuantizer creates an untrained quantizer with the default quantile.
func NewScalarQuantizer() *ScalarQuantizer {
	return &ScalarQuantizer{Quantile: DefaultQuantile}
}

// Train computes the clip range from a representative sample of vectors.
// It should be called once the vector set is large enough to be
// representative (the collection's existing corpus at compaction time, or
// an initial batch at index build time). Calling Train again retrains from
// scratch.
func (q *ScalarQuantizer) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("cannot train quantizer on empty vector set")
	}

	magnitudes := make([]float64, 0, len(vectors)*len(vectors[0]))
	for _, v := range vectors {
		for _, f := range v {
			m := math.Abs(float64(f))
			magnitudes = append(magnitudes, m)
		}
	}
	sort.Float64s(magnitudes)

	idx := int(q.effectiveQuantile() * float64(len(magnitudes)-1))
	clip := magnitudes[idx]
	if clip == 0 {
		clip = 1.0
	}

	q.Scale = 127.0 / clip
	q.trained = true
	return nil
}

func (q *ScalarQuantizer) effectiveQuantile() float64 {
	if q.Quantile <= 0 || q.Quantile > 1 {
		return DefaultQuantile
	}
	return q.Quantile
}

// Trained reports whether Train has been called.
func (q *ScalarQuantizer) Trained() bool {
	return q.trained
}

// Quantize converts a float32 vector to int8 using the trained scale,
// clamping magnitudes beyond the clip range.
func (q *ScalarQuantizer) Quantize(v []float32) []int8 {
	out := make([]int8, len(v))
	for i, f := range v {
		scaled := float64(f) * q.Scale
		if scaled > 127 {
			scaled = 127
		} else if scaled < -127 {
			scaled = -127
		}
		out[i] = int8(math.Round(scaled))
	}
	return out
}

// Dequantize reconstructs an approximate float32 vector from its int8 form.
func (q *ScalarQuantizer) Dequantize(v []int8) []float32 {
	out := make([]float32, len(v))
	if q.Scale == 0 {
		return out
	}
	for i, b := range v {
		out[i] = float32(float64(b) / q.Scale)
	}
	return out
}

// quantizerState is the persisted form of a ScalarQuantizer.
type quantizerState struct {
	Scale    float64
	Quantile float64
	Trained  bool
}

// Save persists the trained quantizer state to disk.
func (q *ScalarQuantizer) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create quantizer file: %w", err)
	}
	defer file.Close()

	state := quantizerState{Scale: q.Scale, Quantile: q.Quantile, Trained: q.trained}
	if err := gob.NewEncoder(file).Encode(state); err != nil {
		return fmt.Errorf("encode quantizer state: %w", err)
	}
	return nil
}

// Load restores quantizer state from disk.
func (q *ScalarQuantizer) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open quantizer file: %w", err)
	}
	defer file.Close()

	var state quantizerState
	if err := gob.NewDecoder(file).Decode(&state); err != nil {
		return fmt.Errorf("decode quantizer state: %w", err)
	}

	q.Scale = state.Scale
	q.Quantile = state.Quantile
	q.trained = state.Trained
	return nil
}
