package utils

import "time"

// WaitForCondition polls condition every interval until it holds or timeout
// elapses, and reports whether it held. A non-positive timeout checks once.
func WaitForCondition(timeout, interval time.Duration, condition func() bool) bool {
	if timeout <= 0 {
		return condition()
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return condition()
}
