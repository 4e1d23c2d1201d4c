package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"
)

// Autocorrelation returns the normalized autocorrelation of series for lags
// 0..len(series)-1, computed through a zero-padded FFT.
func Autocorrelation(series []float64) []float64 {
	n := len(series)
	if n == 0 {
		return nil
	}
	mean := stat.Mean(series, nil)
	padded := make([]float64, 2*n)
	for i, v := range series {
		padded[i] = v - mean
	}
	power := fft.FFTReal(padded)
	for i, c := range power {
		power[i] = complex(cmplx.Abs(c)*cmplx.Abs(c), 0)
	}
	raw := fft.IFFT(power)

	out := make([]float64, n)
	c0 := real(raw[0])
	if c0 == 0 {
		out[0] = 1
		return out
	}
	for k := 0; k < n; k++ {
		out[k] = real(raw[k]) / c0
	}
	return out
}

// DecorrelationLag is the first lag at which the autocorrelation drops
// below 1/e, or len(series) if it never does.
func DecorrelationLag(series []float64) int {
	ac := Autocorrelation(series)
	for k, v := range ac {
		if v < 0.36787944117144233 {
			return k
		}
	}
	return len(series)
}

// Summary holds simple statistics of an RMSD series.
type Summary struct {
	Frames           int     `json:"frames"`
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
	Mean             float64 `json:"mean"`
	StdDev           float64 `json:"std_dev"`
	DecorrelationLag int     `json:"decorrelation_lag"`
}

func Summarize(series []float64) Summary {
	s := Summary{Frames: len(series)}
	if len(series) == 0 {
		return s
	}
	s.Min, s.Max = series[0], series[0]
	for _, v := range series {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Mean, s.StdDev = stat.MeanStdDev(series, nil)
	if len(series) < 2 {
		s.StdDev = 0
	}
	s.DecorrelationLag = DecorrelationLag(series)
	return s
}
