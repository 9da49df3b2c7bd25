package camera

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func flatImage(c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func gradientImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), uint8((x + y) * 2), 255})
		}
	}
	return img
}

func checkerImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x/8+y/8)%2 == 0 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
	}
	return img
}

func TestDeduperFirstFrameNeverDuplicate(t *testing.T) {
	d := NewDeduper(3)
	assert.False(t, d.IsDuplicate(gradientImage()))
}

func TestDeduperSkipsIdenticalFrame(t *testing.T) {
	d := NewDeduper(3)
	img := gradientImage()
	assert.False(t, d.IsDuplicate(img))
	assert.True(t, d.IsDuplicate(img))
	assert.True(t, d.IsDuplicate(img))
}

func TestDeduperPassesChangedFrame(t *testing.T) {
	d := NewDeduper(3)
	assert.False(t, d.IsDuplicate(gradientImage()))
	assert.False(t, d.IsDuplicate(checkerImage()))
}

func TestDeduperReset(t *testing.T) {
	d := NewDeduper(3)
	img := flatImage(color.RGBA{128, 128, 128, 255})
	assert.False(t, d.IsDuplicate(img))
	d.Reset()
	assert.False(t, d.IsDuplicate(img))
}
