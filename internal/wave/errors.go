package wave

import "errors"

var (
	// ErrWaveRegression indicates an attempt to move a sync record back in strict mode
	ErrWaveRegression = errors.New("wave is older than the stored one")

	// ErrMissingTarget indicates a task without target tube
	ErrMissingTarget = errors.New("task has no target")
)
