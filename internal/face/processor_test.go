package face

import (
	"context"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriface/platform/internal/camera"
	"github.com/veriface/platform/internal/errors"
)

// fakeModel is a scripted embedding model.
type fakeModel struct {
	output []float32
	err    error
	dim    int
	calls  int
}

func (m *fakeModel) Infer(ctx context.Context, tensor []float32) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.output, nil
}

func (m *fakeModel) InputSize() (int, int) { return 112, 112 }
func (m *fakeModel) OutputDim() int        { return m.dim }

func TestProcessorProducesUnitEmbedding(t *testing.T) {
	model := &fakeModel{output: []float32{3, 0, 4, 0}, dim: 4}
	p := NewProcessor(model)

	frame := grayFrame(0.5, 1)
	desc := frontalDescriptor(image.Rect(50, 50, 150, 150), 0.8)

	emb, err := p.Process(context.Background(), frame, desc)
	require.NoError(t, err)
	assert.Equal(t, 4, emb.Dim())
	assert.InDelta(t, 1.0, l2(emb.Values), 1e-3)
	assert.Equal(t, 1, model.calls)
}

func TestProcessorTensorShape(t *testing.T) {
	var captured int
	model := &capturingModel{output: []float32{1, 0}, dim: 2, tensorLen: &captured}
	p := NewProcessor(model)

	_, err := p.Process(context.Background(), grayFrame(0.5, 1),
		frontalDescriptor(image.Rect(50, 50, 150, 150), 0.8))
	require.NoError(t, err)
	assert.Equal(t, 112*112*3, captured)
}

type capturingModel struct {
	output    []float32
	dim       int
	tensorLen *int
}

func (m *capturingModel) Infer(ctx context.Context, tensor []float32) ([]float32, error) {
	*m.tensorLen = len(tensor)
	return m.output, nil
}
func (m *capturingModel) InputSize() (int, int) { return 112, 112 }
func (m *capturingModel) OutputDim() int        { return m.dim }

func TestProcessorNilImageIsPreprocessFailure(t *testing.T) {
	model := &fakeModel{output: []float32{1}, dim: 1}
	p := NewProcessor(model)

	_, err := p.Process(context.Background(), camera.Frame{},
		frontalDescriptor(image.Rect(50, 50, 150, 150), 0.8))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodePreprocessFailed))
	assert.Zero(t, model.calls)
}

func TestProcessorRegionOutsideFrame(t *testing.T) {
	model := &fakeModel{output: []float32{1}, dim: 1}
	p := NewProcessor(model)

	_, err := p.Process(context.Background(), grayFrame(0.5, 1),
		frontalDescriptor(image.Rect(500, 500, 600, 600), 0.8))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodePreprocessFailed))
	assert.Zero(t, model.calls)
}

func TestProcessorModelErrorIsOutputMissing(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("session crashed")}
	p := NewProcessor(model)

	_, err := p.Process(context.Background(), grayFrame(0.5, 1),
		frontalDescriptor(image.Rect(50, 50, 150, 150), 0.8))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeModelOutputMissing))
}

func TestProcessorEmptyOutputIsOutputMissing(t *testing.T) {
	model := &fakeModel{output: nil}
	p := NewProcessor(model)

	_, err := p.Process(context.Background(), grayFrame(0.5, 1),
		frontalDescriptor(image.Rect(50, 50, 150, 150), 0.8))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeModelOutputMissing))
}

func TestProcessorTruncatedOutputIsOutputMissing(t *testing.T) {
	model := &fakeModel{output: []float32{1, 2}, dim: 512}
	p := NewProcessor(model)

	_, err := p.Process(context.Background(), grayFrame(0.5, 1),
		frontalDescriptor(image.Rect(50, 50, 150, 150), 0.8))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeModelOutputMissing))
}
