package model

import "errors"

// Error taxonomy for the worker. Only the two timeout kinds are meant to
// surface across a distribution boundary; the others are recovered locally
// and only ever appear in log attributes.
var (
	// ErrRequestTimeout means the request's wall-clock budget (expire_at)
	// elapsed. The request is abandoned without a FIN.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrDistributionTimeout means a single file node's scan budget
	// (limits.distribution) elapsed. The node's event may be lost; children
	// already collected still recurse under the request timeout.
	ErrDistributionTimeout = errors.New("distribution timeout")

	// ErrMissingScanner means a configured scanner name has no registered
	// plugin. The scanner is skipped; the request continues.
	ErrMissingScanner = errors.New("scanner not registered")

	// ErrScannerFault means a plugin returned an unhandled error. The
	// scanner is skipped; other scanners and children continue.
	ErrScannerFault = errors.New("scanner fault")

	// ErrCoordinatorUnavailable is fatal at startup: the coordinator did
	// not answer a ping.
	ErrCoordinatorUnavailable = errors.New("coordinator unavailable")

	// ErrCoordinatorFault means a runtime coordinator I/O error. The
	// current request is abandoned; the worker continues.
	ErrCoordinatorFault = errors.New("coordinator fault")
)
