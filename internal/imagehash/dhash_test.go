package imagehash

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradientImage increases in brightness left to right, so every dHash bit
// compares darker-vs-brighter the same way: all zeros.
func gradientImage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / w)})
		}
	}
	return img
}

// stripeImage alternates twelve bright and dark vertical bands, sized
// relative to the image width.
func stripeImage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x*12/w)%2 == 0 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestDHashFormat(t *testing.T) {
	h := DHash(gradientImage(90, 80))
	require.Len(t, h, 16)
	assert.Regexp(t, "^[0-9a-f]{16}$", h)
}

func TestDHashDeterministic(t *testing.T) {
	a := DHash(stripeImage(96, 96))
	b := DHash(stripeImage(96, 96))
	assert.Equal(t, a, b)
}

func TestDHashMonotonicGradientIsZero(t *testing.T) {
	// Brightness strictly increases left to right, so no pixel is brighter
	// than its right neighbor.
	assert.Equal(t, "0000000000000000", DHash(gradientImage(180, 160)))
}

func TestDHashStableUnderRescale(t *testing.T) {
	small := DHash(stripeImage(96, 96))
	large := DHash(stripeImage(192, 192))
	d := Distance(small, large)
	require.GreaterOrEqual(t, d, 0)
	assert.LessOrEqual(t, d, 8)
}

func TestDHashDistinguishesContent(t *testing.T) {
	grad := DHash(gradientImage(96, 96))
	stripes := DHash(stripeImage(96, 96))
	assert.NotEqual(t, grad, stripes)
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, Distance("00ff00ff00ff00ff", "00ff00ff00ff00ff"))
	assert.Equal(t, 1, Distance("0000000000000000", "0000000000000001"))
	assert.Equal(t, 64, Distance("0000000000000000", "ffffffffffffffff"))
	assert.Equal(t, -1, Distance("zz", "0000000000000000"))
}

func TestDHashEmptyImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 0, 0))
	assert.Equal(t, "0000000000000000", DHash(img))
}
