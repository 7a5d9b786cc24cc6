// Package singleinstance keeps a second gamergamma process from grabbing the
// same global hotkeys.
package singleinstance

import "errors"

// ErrAlreadyRunning is returned by TryLock when another instance holds the
// lock.
var ErrAlreadyRunning = errors.New("another instance is already running")
