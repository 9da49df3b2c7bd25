package face

import (
	"image"
	"log/slog"
	"math"

	"github.com/veriface/platform/internal/camera"
)

// Detector is the face-detection collaborator. Implementations must be safe
// to call repeatedly and must never block indefinitely. found is false when
// no face is present in the image.
type Detector interface {
	Detect(img image.Image) (desc Descriptor, found bool, err error)
}

// Rules holds the validation thresholds for candidate faces.
// These are tuning knobs calibrated in the field.
type Rules struct {
	MaxRollDegrees float64
	MaxYawDegrees  float64
	MinBrightness  float64
	MaxBrightness  float64
	MinSharpness   float64
}

// DefaultRules returns the calibrated validation thresholds.
func DefaultRules() Rules {
	return Rules{
		MaxRollDegrees: 15,
		MaxYawDegrees:  15,
		MinBrightness:  0.25,
		MaxBrightness:  0.85,
		MinSharpness:   0.2,
	}
}

// Quality blend weights. Sharpness dominates because a blurry frontal face
// embeds worse than a sharp slightly-turned one.
const (
	sharpnessWeight = 0.7
	poseWeight      = 0.3
)

// Analyzer wraps detection and geometric/photometric validation into a single
// call: image in, optional candidate out. It holds no mutable state and is
// safe to invoke concurrently across frames.
type Analyzer struct {
	detector Detector
	rules    Rules
}

// NewAnalyzer creates an analyzer over the given detection backend.
func NewAnalyzer(detector Detector, rules Rules) *Analyzer {
	return &Analyzer{detector: detector, rules: rules}
}

// Analyze detects and validates a face in the frame. Detection errors and
// validation failures are both folded into "no candidate"; the pipeline
// treats them as soft conditions, never as errors.
func (a *Analyzer) Analyze(frame camera.Frame) (Candidate, bool) {
	if frame.Image == nil {
		return Candidate{}, false
	}

	desc, found, err := a.detector.Detect(frame.Image)
	if err != nil {
		slog.Debug("detection failed", "seq", frame.Seq, "error", err)
		return Candidate{}, false
	}
	if !found {
		return Candidate{}, false
	}

	sharpness, ok := desc.Sharpness()
	if !ok || sharpness < a.rules.MinSharpness {
		return Candidate{}, false
	}

	roll := RollDegrees(desc)
	yaw := YawDegrees(desc)
	if math.Abs(roll) > a.rules.MaxRollDegrees || math.Abs(yaw) > a.rules.MaxYawDegrees {
		return Candidate{}, false
	}

	brightness := regionBrightness(frame.Image, desc.Bounds())
	if brightness < a.rules.MinBrightness || brightness > a.rules.MaxBrightness {
		return Candidate{}, false
	}

	return Candidate{
		Descriptor: desc,
		Frame:      frame,
		Quality:    a.quality(sharpness, roll, yaw),
	}, true
}

// quality blends sharpness with pose centering into a single scalar in [0,1].
func (a *Analyzer) quality(sharpness, roll, yaw float64) float64 {
	rollRatio := math.Abs(roll) / a.rules.MaxRollDegrees
	yawRatio := math.Abs(yaw) / a.rules.MaxYawDegrees
	poseCentering := 1 - (rollRatio+yawRatio)/2

	q := sharpness*sharpnessWeight + poseCentering*poseWeight
	return math.Max(0, math.Min(1, q))
}

// regionBrightness is the mean luma of the face region, normalized to [0,1].
// The region is clipped to the image; an empty intersection reads as 0.
func regionBrightness(img image.Image, region image.Rectangle) float64 {
	r := region.Intersect(img.Bounds())
	if r.Empty() {
		return 0
	}

	// Sample a grid rather than every pixel; brightness is a coarse gate.
	const gridSteps = 16
	stepX := max(1, r.Dx()/gridSteps)
	stepY := max(1, r.Dy()/gridSteps)

	var sum float64
	var n int
	for y := r.Min.Y; y < r.Max.Y; y += stepY {
		for x := r.Min.X; x < r.Max.X; x += stepX {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma on 16-bit channel values.
			luma := 0.299*float64(cr) + 0.587*float64(cg) + 0.114*float64(cb)
			sum += luma / 65535.0
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
