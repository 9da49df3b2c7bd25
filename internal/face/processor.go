package face

import (
	"context"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/veriface/platform/internal/camera"
	"github.com/veriface/platform/internal/errors"
)

// Model is the opaque embedding network. Implementations run on-device
// inference; a call can take hundreds of milliseconds.
type Model interface {
	// Infer runs the network on a CHW float tensor of InputSize dimensions.
	Infer(ctx context.Context, tensor []float32) ([]float32, error)
	// InputSize is the pixel width and height the model expects.
	InputSize() (width, height int)
	// OutputDim is the embedding length the model produces.
	OutputDim() int
}

// cropMargin expands the detector's face bounds before cropping so the
// aligned crop retains chin and forehead context the embedder was trained on.
const cropMargin = 0.2

// Processor turns a winning (frame, descriptor) pair into a normalized
// embedding: crop, roll-correcting alignment, resize, tensor conversion,
// model inference, L2 normalization. Expensive; invoked once per winner,
// never speculatively.
type Processor struct {
	model Model
}

// NewProcessor creates a processor over the given embedding model.
func NewProcessor(model Model) *Processor {
	return &Processor{model: model}
}

// Process extracts the embedding for the described face. Failures carry
// distinct codes: CodePreprocessFailed when the face region cannot be
// rendered, CodeModelOutputMissing when the model produces nothing usable.
func (p *Processor) Process(ctx context.Context, frame camera.Frame, desc Descriptor) (Embedding, error) {
	if frame.Image == nil {
		return Embedding{}, errors.New(errors.CodePreprocessFailed, "frame has no image data")
	}

	region := expand(desc.Bounds(), cropMargin).Intersect(frame.Image.Bounds())
	if region.Empty() {
		return Embedding{}, errors.New(errors.CodePreprocessFailed, "face region outside frame bounds")
	}

	crop := imaging.Crop(frame.Image, region)

	// Rotate opposite the measured roll so the eye line is level.
	if roll := RollDegrees(desc); roll != 0 {
		crop = imaging.Rotate(crop, roll, color.Black)
	}

	w, h := p.model.InputSize()
	resized := imaging.Resize(crop, w, h, imaging.Lanczos)
	if resized.Bounds().Empty() {
		return Embedding{}, errors.New(errors.CodePreprocessFailed, "resize produced empty image")
	}

	raw, err := p.model.Infer(ctx, toTensor(resized, w, h))
	if err != nil {
		return Embedding{}, errors.Wrap(err, errors.CodeModelOutputMissing, "model inference failed")
	}
	if len(raw) == 0 {
		return Embedding{}, errors.New(errors.CodeModelOutputMissing, "model returned empty output")
	}
	if dim := p.model.OutputDim(); dim > 0 && len(raw) != dim {
		return Embedding{}, errors.Newf(errors.CodeModelOutputMissing,
			"model output length %d, expected %d", len(raw), dim)
	}

	return NewEmbedding(raw), nil
}

// toTensor converts an image to a CHW float32 tensor with [0,1] channels.
func toTensor(img image.Image, w, h int) []float32 {
	channelSize := w * h
	tensor := make([]float32, channelSize*3)

	bounds := img.Bounds()
	for y := 0; y < h; y++ {
		offset := y * w
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := offset + x
			tensor[i] = float32(r>>8) / 255.0
			tensor[channelSize+i] = float32(g>>8) / 255.0
			tensor[channelSize*2+i] = float32(b>>8) / 255.0
		}
	}
	return tensor
}

// expand grows a rectangle by margin on each side, proportional to its size.
func expand(r image.Rectangle, margin float64) image.Rectangle {
	dx := int(float64(r.Dx()) * margin)
	dy := int(float64(r.Dy()) * margin)
	return image.Rect(r.Min.X-dx, r.Min.Y-dy, r.Max.X+dx, r.Max.Y+dy)
}
