package motion

import (
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

const (
	// Reversal hysteresis in N. Slope flips smaller than this are treated
	// as sensor noise, not modulation.
	reversalBandN = 0.05

	// Frequency above which force power counts as high-frequency content.
	forceHighFreqHz = 5.0
)

// ForceModulation captures how steadily force was applied over a window.
type ForceModulation struct {
	CV            float64 `json:"cv"`
	Reversals     int     `json:"reversals"`
	HighFreqRatio float64 `json:"highFreqRatio"`
}

// forceModulation computes the modulation statistics of a force-magnitude
// series sampled at rateHz.
func forceModulation(mags []float64, rateHz float64) ForceModulation {
	if len(mags) < 2 {
		return ForceModulation{}
	}
	mean := stat.Mean(mags, nil)
	fm := ForceModulation{
		Reversals:     countReversals(mags, reversalBandN),
		HighFreqRatio: highFreqPowerRatio(mags, rateHz, forceHighFreqHz),
	}
	if mean > 0 {
		fm.CV = stat.StdDev(mags, nil) / mean
	}
	return fm
}

// countReversals counts confirmed direction changes of the magnitude slope.
// A change only counts once the series has moved past the hysteresis band in
// the opposite direction, so jitter around a plateau scores zero.
func countReversals(mags []float64, band float64) int {
	dir := 0
	ref := mags[0]
	count := 0
	for _, m := range mags[1:] {
		switch dir {
		case 0:
			if m > ref+band {
				dir, ref = 1, m
			} else if m < ref-band {
				dir, ref = -1, m
			}
		case 1:
			if m > ref {
				ref = m
			} else if m < ref-band {
				dir, ref = -1, m
				count++
			}
		case -1:
			if m < ref {
				ref = m
			} else if m > ref+band {
				dir, ref = 1, m
				count++
			}
		}
	}
	return count
}

// highFreqPowerRatio returns the share of spectral power above cutoffHz in
// the mean-removed magnitude series. DC is excluded from both sides of the
// ratio.
func highFreqPowerRatio(mags []float64, rateHz, cutoffHz float64) float64 {
	n := len(mags)
	if n < 8 || rateHz <= 0 {
		return 0
	}
	mean := stat.Mean(mags, nil)
	centered := make([]float64, n)
	for i, m := range mags {
		centered[i] = m - mean
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, centered)

	var total, high float64
	for i := 1; i < len(coeffs); i++ {
		re, im := real(coeffs[i]), imag(coeffs[i])
		p := re*re + im*im
		total += p
		if fft.Freq(i)*rateHz > cutoffHz {
			high += p
		}
	}
	if total == 0 {
		return 0
	}
	return high / total
}
