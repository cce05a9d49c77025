// Package imagehash computes 64-bit difference hashes (dHash) over ad
// creatives. Two creatives that are re-encodes or light crops of the same
// image produce the same hash, which is the strongest dedup key the pipeline
// has: identical visuals mean the same product regardless of ad copy.
package imagehash

import (
	"fmt"
	"image"
)

const (
	hashCols = 9
	hashRows = 8
)

// DHash computes the 64-bit difference hash of an image and returns it as a
// 16-digit lowercase hex string. The image is reduced to a 9x8 grayscale
// grid and each bit records whether a pixel is brighter than its right
// neighbor.
func DHash(img image.Image) string {
	grid := downsample(img, hashCols, hashRows)

	var bits uint64
	for y := 0; y < hashRows; y++ {
		for x := 0; x < hashCols-1; x++ {
			bits <<= 1
			if grid[y][x] > grid[y][x+1] {
				bits |= 1
			}
		}
	}
	return fmt.Sprintf("%016x", bits)
}

// downsample reduces img to a cols x rows grid of average luminance values
// using box sampling, so every source pixel contributes to exactly one cell.
func downsample(img image.Image, cols, rows int) [][]float64 {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	grid := make([][]float64, rows)
	for y := range grid {
		grid[y] = make([]float64, cols)
	}
	if w == 0 || h == 0 {
		return grid
	}

	counts := make([][]int, rows)
	for y := range counts {
		counts[y] = make([]int, cols)
	}

	for py := 0; py < h; py++ {
		gy := py * rows / h
		for px := 0; px < w; px++ {
			gx := px * cols / w
			r, g, b, _ := img.At(bounds.Min.X+px, bounds.Min.Y+py).RGBA()
			// ITU-R BT.601 luma over 16-bit channels.
			lum := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
			grid[gy][gx] += lum
			counts[gy][gx]++
		}
	}

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if counts[y][x] > 0 {
				grid[y][x] /= float64(counts[y][x])
			}
		}
	}
	return grid
}

// Distance returns the Hamming distance between two hex-encoded hashes, or -1
// if either hash is malformed.
func Distance(a, b string) int {
	var ua, ub uint64
	if _, err := fmt.Sscanf(a, "%016x", &ua); err != nil {
		return -1
	}
	if _, err := fmt.Sscanf(b, "%016x", &ub); err != nil {
		return -1
	}
	x := ua ^ ub
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}
