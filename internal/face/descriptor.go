// Package face implements the frame-to-embedding pipeline: candidate
// analysis, best-of-window collection, and embedding extraction.
package face

import (
	"image"

	"github.com/veriface/platform/internal/camera"
)

// Point is a landmark position in frame pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Descriptor is the opaque handle for a detected face. It exposes only what
// validation and preprocessing need, keeping the detection backend swappable
// and testable with synthetic descriptors.
type Descriptor interface {
	// Bounds is the face region in the source frame.
	Bounds() image.Rectangle
	// LeftEye, RightEye and Nose are landmark positions in frame coordinates.
	// Left/right are from the viewer's perspective.
	LeftEye() Point
	RightEye() Point
	Nose() Point
	// Sharpness is the capture-quality score in [0,1]. ok is false when the
	// detection backend does not provide one.
	Sharpness() (score float64, ok bool)
}

// Candidate is a detected, validated face plus its source frame and quality.
// Quality is a single scalar in [0,1]; downstream consumers never inspect
// its sub-components.
type Candidate struct {
	Descriptor Descriptor
	Frame      camera.Frame
	Quality    float64
}
