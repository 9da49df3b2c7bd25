// Package camera defines the frame-delivery contract and development sources.
package camera

import (
	"context"
	"image"
	"time"
)

// Frame is one captured image with its delivery timestamp.
// Ownership passes to the consumer for the duration of one intake call.
type Frame struct {
	Image     image.Image
	Timestamp time.Time
	Seq       uint64
}

// Source is the capture-device collaborator. Implementations deliver frames
// at device rate on their own goroutine; consumers must never block delivery.
type Source interface {
	// Start begins frame delivery. Frames arrive on Frames() until Stop.
	Start(ctx context.Context) error
	// Stop halts delivery. No frames are emitted after Stop returns.
	Stop()
	// Frames returns the delivery channel. Closed after Stop.
	Frames() <-chan Frame
}
