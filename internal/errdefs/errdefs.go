// Package errdefs defines the error classes shared across gpubridge
// components. Callers classify failures with errors.Is against these
// sentinels; the concrete message carries the per-container detail.
package errdefs

import "errors"

var (
	// ErrPrecondition indicates a required precondition did not hold
	// (empty host device inventory, container not running for a live check).
	// Fatal for the affected container, never retried.
	ErrPrecondition = errors.New("precondition failed")

	// ErrConfigWrite indicates the backup or persist step of a
	// configuration rewrite failed. The document is left untouched.
	ErrConfigWrite = errors.New("config write failed")

	// ErrLifecycle indicates a container start or stop returned a
	// non-zero status.
	ErrLifecycle = errors.New("container lifecycle operation failed")

	// ErrUserCancelled indicates the operator declined to continue a batch.
	ErrUserCancelled = errors.New("cancelled by operator")
)
