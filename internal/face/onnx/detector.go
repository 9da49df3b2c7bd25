package onnx

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/veriface/platform/internal/face"
)

// Detector input size and output layout for the 5-landmark face detector.
// Each output row is [cx, cy, w, h, score, lm1x, lm1y, ... lm5x, lm5y] with
// coordinates normalized to the detector input.
const (
	DetectInputWidth  = 320
	DetectInputHeight = 320
	detectRowLen      = 15
	maxDetections     = 200

	// Minimum detection confidence to report a face at all.
	minDetectScore = 0.5

	// Laplacian variance at which a crop counts as fully sharp. Calibrated
	// against webcam footage; variance grows without bound on synthetic edges.
	sharpnessRefVariance = 180.0
)

// Landmark row offsets: left eye, right eye, nose are the first three of the
// five landmark points.
const (
	lmLeftEye  = 5
	lmRightEye = 7
	lmNose     = 9
)

// Detector runs a face detection network and returns the single
// highest-confidence face as a pipeline descriptor.
type Detector struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewDetector loads the detection model at modelPath.
func NewDetector(modelPath string) (*Detector, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("detector session options: %w", err)
	}
	defer options.Destroy()

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, DetectInputHeight, DetectInputWidth))
	if err != nil {
		return nil, fmt.Errorf("detector input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, maxDetections, detectRowLen))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("detector output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input"},
		[]string{"detections"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("detector session: %w", err)
	}

	return &Detector{session: session, input: inputTensor, output: outputTensor}, nil
}

// Detect runs detection and returns the best face, if any.
func (d *Detector) Detect(img image.Image) (face.Descriptor, bool, error) {
	resized := imaging.Resize(img, DetectInputWidth, DetectInputHeight, imaging.Linear)

	d.mu.Lock()
	fillTensor(resized, d.input.GetData())
	if err := d.session.Run(); err != nil {
		d.mu.Unlock()
		return nil, false, fmt.Errorf("detector inference: %w", err)
	}
	out := make([]float32, len(d.output.GetData()))
	copy(out, d.output.GetData())
	d.mu.Unlock()

	row, ok := bestRow(out)
	if !ok {
		return nil, false, nil
	}

	bounds := img.Bounds()
	sx := float64(bounds.Dx())
	sy := float64(bounds.Dy())
	point := func(off int) face.Point {
		return face.Point{
			X: float64(bounds.Min.X) + float64(row[off])*sx,
			Y: float64(bounds.Min.Y) + float64(row[off+1])*sy,
		}
	}

	cx := float64(bounds.Min.X) + float64(row[0])*sx
	cy := float64(bounds.Min.Y) + float64(row[1])*sy
	w := float64(row[2]) * sx
	h := float64(row[3]) * sy
	rect := image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2))

	return &detection{
		bounds:    rect,
		leftEye:   point(lmLeftEye),
		rightEye:  point(lmRightEye),
		nose:      point(lmNose),
		sharpness: sharpness(img, rect),
	}, true, nil
}

// Close releases the session and its tensors.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session.Destroy()
	d.input.Destroy()
	d.output.Destroy()
}

// bestRow returns the highest-confidence detection row at or above the
// reporting threshold.
func bestRow(out []float32) ([]float32, bool) {
	var best []float32
	bestScore := float32(minDetectScore)
	for i := 0; i+detectRowLen <= len(out); i += detectRowLen {
		row := out[i : i+detectRowLen]
		if row[4] >= bestScore {
			bestScore = row[4]
			best = row
		}
	}
	return best, best != nil
}

// fillTensor writes a CHW [0,1] float tensor for the resized detector input.
func fillTensor(img *image.NRGBA, dst []float32) {
	channelSize := DetectInputWidth * DetectInputHeight
	for y := 0; y < DetectInputHeight; y++ {
		offset := y * DetectInputWidth
		for x := 0; x < DetectInputWidth; x++ {
			i := offset + x
			p := img.NRGBAAt(x, y)
			dst[i] = float32(p.R) / 255.0
			dst[channelSize+i] = float32(p.G) / 255.0
			dst[channelSize*2+i] = float32(p.B) / 255.0
		}
	}
}

// sharpness estimates capture quality as normalized Laplacian variance over
// the face region, clamped to [0,1].
func sharpness(img image.Image, region image.Rectangle) float64 {
	r := region.Intersect(img.Bounds())
	if r.Dx() < 3 || r.Dy() < 3 {
		return 0
	}

	luma := func(x, y int) float64 {
		cr, cg, cb, _ := img.At(x, y).RGBA()
		return (0.299*float64(cr) + 0.587*float64(cg) + 0.114*float64(cb)) / 257.0
	}

	var sum, sumSq float64
	var n int
	for y := r.Min.Y + 1; y < r.Max.Y-1; y++ {
		for x := r.Min.X + 1; x < r.Max.X-1; x++ {
			lap := 4*luma(x, y) - luma(x-1, y) - luma(x+1, y) - luma(x, y-1) - luma(x, y+1)
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	return math.Min(1, variance/sharpnessRefVariance)
}

// detection is the Descriptor produced by the ONNX detector.
type detection struct {
	bounds    image.Rectangle
	leftEye   face.Point
	rightEye  face.Point
	nose      face.Point
	sharpness float64
}

func (d *detection) Bounds() image.Rectangle    { return d.bounds }
func (d *detection) LeftEye() face.Point        { return d.leftEye }
func (d *detection) RightEye() face.Point       { return d.rightEye }
func (d *detection) Nose() face.Point           { return d.nose }
func (d *detection) Sharpness() (float64, bool) { return d.sharpness, true }
