// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection sliding window for incoming WebSocket messages.
	// Frame pushes above camera rate are abuse, not signal.
	RateLimitMessages = 30
	RateLimitWindow   = time.Second

	// MaxFrameBytes caps an uploaded frame body.
	MaxFrameBytes = 8 << 20
)
