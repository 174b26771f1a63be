package runtime

import "time"

// backoffUnit scales transport retry delays. Tests shrink it so retry paths
// run without real sleeps.
var backoffUnit = time.Second

// backoff returns the pause after failed attempt n (0-based): 2^n units.
func backoff(attempt uint) time.Duration {
	return time.Duration(1<<attempt) * backoffUnit
}
