// Package motion computes movement-quality metrics from recorded samples:
// smoothness of the speed profile, path efficiency against the reference, and
// force-modulation statistics. It runs off the servo loop; streaming
// accumulation happens during a session and the full-profile analysis on
// completion.
package motion

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// Spectral arc length parameters. 20 Hz covers voluntary hand motion;
	// the amplitude threshold trims the noise floor from the adaptive band.
	sparcCutoffHz     = 20.0
	sparcAmpThreshold = 0.05
	sparcPadLevel     = 4
)

// sparc computes the spectral arc length of a speed profile sampled at
// rateHz. The magnitude spectrum is normalized by its DC component, limited
// to the cutoff frequency, trimmed to the adaptive band above the amplitude
// threshold, and its arc length taken with the frequency axis scaled to unit
// span. More negative means less smooth.
func sparc(speed []float64, rateHz float64) float64 {
	if len(speed) < 2 || rateHz <= 0 {
		return 0
	}

	// Zero-pad well past the signal length for spectral resolution.
	n := nextPow2(len(speed)) << sparcPadLevel
	padded := make([]float64, n)
	copy(padded, speed)

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, padded)

	mag := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mag[i] = cmplx.Abs(c)
	}
	if mag[0] == 0 {
		return 0
	}
	for i := range mag {
		mag[i] /= mag[0]
	}

	// Keep the band up to the cutoff frequency.
	cut := len(mag)
	for i := range mag {
		if fft.Freq(i)*rateHz > sparcCutoffHz {
			cut = i
			break
		}
	}
	if cut < 2 {
		return 0
	}
	mag = mag[:cut]

	// Adaptive band: drop the tail below the amplitude threshold. The DC
	// bin is 1.0 so the band always starts at zero.
	last := 0
	for i, m := range mag {
		if m >= sparcAmpThreshold {
			last = i
		}
	}
	if last < 1 {
		return 0
	}
	mag = mag[:last+1]

	span := fft.Freq(last) * rateHz
	if span == 0 {
		return 0
	}
	var sal float64
	for i := 1; i < len(mag); i++ {
		df := (fft.Freq(i) - fft.Freq(i-1)) * rateHz / span
		dm := mag[i] - mag[i-1]
		sal -= math.Sqrt(df*df + dm*dm)
	}
	return sal
}

// ldlj computes the log dimensionless jerk of a speed profile: the squared
// second derivative of speed integrated over the window, scaled by duration
// cubed over peak speed squared, negated on a log scale. More negative means
// less smooth.
func ldlj(speed []float64, rateHz float64) float64 {
	n := len(speed)
	if n < 5 || rateHz <= 0 {
		return 0
	}
	dt := 1 / rateHz

	var peak float64
	for _, v := range speed {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return 0
	}

	var integral float64
	for i := 1; i < n-1; i++ {
		j := (speed[i+1] - 2*speed[i] + speed[i-1]) / (dt * dt)
		integral += j * j * dt
	}
	if integral == 0 {
		return 0
	}

	duration := float64(n-1) * dt
	dlj := math.Pow(duration, 3) / (peak * peak) * integral
	return -math.Log(dlj)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
