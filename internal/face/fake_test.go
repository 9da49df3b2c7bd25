package face

import (
	"image"
	"image/color"
	"time"

	"github.com/veriface/platform/internal/camera"
)

// fakeDescriptor is a synthetic face handle for pipeline tests.
type fakeDescriptor struct {
	bounds    image.Rectangle
	leftEye   Point
	rightEye  Point
	nose      Point
	sharpness float64
	noScore   bool
}

func (f *fakeDescriptor) Bounds() image.Rectangle { return f.bounds }
func (f *fakeDescriptor) LeftEye() Point          { return f.leftEye }
func (f *fakeDescriptor) RightEye() Point         { return f.rightEye }
func (f *fakeDescriptor) Nose() Point             { return f.nose }
func (f *fakeDescriptor) Sharpness() (float64, bool) {
	return f.sharpness, !f.noScore
}

// frontalDescriptor returns a level, centered face within the given bounds.
func frontalDescriptor(bounds image.Rectangle, sharpness float64) *fakeDescriptor {
	cx := float64(bounds.Min.X+bounds.Max.X) / 2
	cy := float64(bounds.Min.Y+bounds.Max.Y) / 2
	eyeSpan := float64(bounds.Dx()) / 3
	return &fakeDescriptor{
		bounds:    bounds,
		leftEye:   Point{X: cx - eyeSpan/2, Y: cy - 10},
		rightEye:  Point{X: cx + eyeSpan/2, Y: cy - 10},
		nose:      Point{X: cx, Y: cy + 5},
		sharpness: sharpness,
	}
}

// grayFrame builds a frame filled with a uniform gray level in [0,1].
func grayFrame(level float64, seq uint64) camera.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	v := uint8(level * 255)
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return camera.Frame{Image: img, Timestamp: time.Now(), Seq: seq}
}

func candidateWithQuality(q float64) Candidate {
	return Candidate{
		Descriptor: frontalDescriptor(image.Rect(50, 50, 150, 150), q),
		Frame:      grayFrame(0.5, 1),
		Quality:    q,
	}
}

// fakeDetector returns a scripted sequence of detection results.
type fakeDetector struct {
	desc  Descriptor
	found bool
	err   error
	calls int
}

func (d *fakeDetector) Detect(img image.Image) (Descriptor, bool, error) {
	d.calls++
	return d.desc, d.found, d.err
}
