package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Embedder input size expected by standard 512-d face embedding networks.
const (
	EmbedInputWidth  = 112
	EmbedInputHeight = 112
)

// Embedder runs a face embedding network through onnxruntime. It implements
// the pipeline's Model contract. The session's input and output tensors are
// preallocated; a mutex serializes Run calls over them.
type Embedder struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	dim     int
}

// NewEmbedder loads the embedding model at modelPath producing dim-length
// vectors.
func NewEmbedder(modelPath string, dim int) (*Embedder, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("embedder session options: %w", err)
	}
	defer options.Destroy()

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, EmbedInputHeight, EmbedInputWidth))
	if err != nil {
		return nil, fmt.Errorf("embedder input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(dim)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("embedder output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input"},
		[]string{"embedding"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("embedder session: %w", err)
	}

	return &Embedder{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		dim:     dim,
	}, nil
}

// Infer runs the network on a CHW tensor and returns the raw output vector.
func (e *Embedder) Infer(ctx context.Context, tensor []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	in := e.input.GetData()
	if len(tensor) != len(in) {
		return nil, fmt.Errorf("embedder input length %d, tensor holds %d", len(tensor), len(in))
	}
	copy(in, tensor)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("embedder inference: %w", err)
	}

	out := make([]float32, e.dim)
	copy(out, e.output.GetData())
	return out, nil
}

// InputSize returns the expected input pixel dimensions.
func (e *Embedder) InputSize() (int, int) { return EmbedInputWidth, EmbedInputHeight }

// OutputDim returns the embedding length.
func (e *Embedder) OutputDim() int { return e.dim }

// Close releases the session and its tensors.
func (e *Embedder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Destroy()
	e.input.Destroy()
	e.output.Destroy()
}
