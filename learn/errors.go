package learn

import "errors"

// ErrNotReady is returned by Compose when a required buffer cannot supply
// its share of a batch. It is a scheduling state, not a failure: the loop
// waits and retries.
var ErrNotReady = errors.New("not enough targets for a batch")
