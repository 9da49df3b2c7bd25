package onnx

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(score float32) []float32 {
	r := make([]float32, detectRowLen)
	r[0], r[1], r[2], r[3] = 0.5, 0.5, 0.2, 0.3
	r[4] = score
	return r
}

func TestBestRowPicksHighestConfidence(t *testing.T) {
	out := append(append(row(0.6), row(0.9)...), row(0.7)...)
	best, ok := bestRow(out)
	require.True(t, ok)
	assert.Equal(t, float32(0.9), best[4])
}

func TestBestRowRejectsBelowThreshold(t *testing.T) {
	out := append(row(0.1), row(0.3)...)
	_, ok := bestRow(out)
	assert.False(t, ok)
}

func TestBestRowEmptyOutput(t *testing.T) {
	_, ok := bestRow(nil)
	assert.False(t, ok)
}

func TestSharpnessFlatVersusTextured(t *testing.T) {
	flat := image.NewRGBA(image.Rect(0, 0, 64, 64))
	textured := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			flat.Set(x, y, color.RGBA{120, 120, 120, 255})
			if (x+y)%2 == 0 {
				textured.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				textured.Set(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
	}

	region := image.Rect(8, 8, 56, 56)
	assert.InDelta(t, 0, sharpness(flat, region), 1e-9)
	assert.Greater(t, sharpness(textured, region), sharpness(flat, region))
}

func TestSharpnessTinyRegion(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	assert.Equal(t, 0.0, sharpness(img, image.Rect(0, 0, 2, 2)))
}
