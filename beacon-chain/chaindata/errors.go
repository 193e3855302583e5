package chaindata

import "github.com/pkg/errors"

var (
	// ErrStoreUninitialized is returned for store reads before genesis or
	// before the startup fetch completes. Most callers treat it as a no-op
	// condition rather than a failure.
	ErrStoreUninitialized = errors.New("fork-choice store is not initialized")

	// ErrAlreadyInitialized is returned when a genesis state is supplied
	// after a store already exists. This is an operator misconfiguration.
	ErrAlreadyInitialized = errors.New("fork-choice store is already initialized")

	// ErrFinalizedRegression is returned when a transaction attempts to
	// move the finalized checkpoint to a lower epoch.
	ErrFinalizedRegression = errors.New("finalized checkpoint epoch regression")

	// ErrCommitFailed wraps storage failures during a transaction commit.
	// In steady state it is fatal and triggers orderly shutdown.
	ErrCommitFailed = errors.New("store transaction commit failed")
)
