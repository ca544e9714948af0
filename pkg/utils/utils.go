// Package utils provides small numeric helpers shared by the analysis
// packages, glob name filters, test polling helpers and a browser launcher
// for `serve --open`.
package utils

import (
	"math"
	"os/exec"
	"runtime"

	"github.com/pkg/errors"
)

// Round rounds v half away from zero to the given number of decimal places
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Mean is the arithmetic mean of values, or 0 for none
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Yi converts yuan to 亿元
func Yi(yuan float64) float64 {
	return yuan / 1e8
}

// OpenBrowser attempts to open the default browser with the given URL
func OpenBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		return errors.New("unsupported operating system")
	}

	return exec.Command(cmd, args...).Start()
}
