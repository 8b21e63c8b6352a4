// Package vision decodes captured frames and computes pixel-level structural
// differences between them, producing a match percentage and an optional
// diff image.
package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// DefaultThreshold is the perceptual threshold applied when the caller does
// not supply one. Higher values tolerate more antialiasing and subpixel
// variance before flagging a pixel as different.
const DefaultThreshold = 0.1

// Options controls a comparison.
type Options struct {
	Threshold float64 // 0-1; 0 flags any deviation
	DiffImage bool    // render a diff image highlighting changed regions
}

// Result is the outcome of one comparison. Computed fresh per request and
// never persisted unless the caller saves the diff image.
type Result struct {
	MatchPercentage float64 `json:"matchPercentage"`
	DiffPixels      int     `json:"diffPixels"`
	TotalPixels     int     `json:"totalPixels"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`

	Diff *image.NRGBA `json:"-"`
}

// Decode parses an encoded raster image into NRGBA for pixel access.
func Decode(data []byte) (*image.NRGBA, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return imaging.Clone(img), nil
}

// Compare runs a per-pixel structural comparison. Mismatched dimensions are
// clipped to the smaller width and height, never scaled, to keep
// interpolation artifacts out of the diff. Comparing an image against an
// exact copy of itself yields 100% match for any nonzero-size input.
func Compare(a, b *image.NRGBA, opts Options) (Result, error) {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	width := min(a.Bounds().Dx(), b.Bounds().Dx())
	height := min(a.Bounds().Dy(), b.Bounds().Dy())
	if width == 0 || height == 0 {
		return Result{}, fmt.Errorf("empty comparison region %dx%d", width, height)
	}

	var diff *image.NRGBA
	if opts.DiffImage {
		diff = image.NewNRGBA(image.Rect(0, 0, width, height))
	}

	// Squared YIQ distance; 35215 is the maximum possible value.
	maxDelta := 35215 * opts.Threshold * opts.Threshold

	total := width * height
	differing := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pa := pixelAt(a, x, y)
			pb := pixelAt(b, x, y)
			if pa == pb {
				if diff != nil {
					diff.SetNRGBA(x, y, faded(pa))
				}
				continue
			}
			if colorDelta(pa, pb) > maxDelta {
				differing++
				if diff != nil {
					diff.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
				}
			} else if diff != nil {
				diff.SetNRGBA(x, y, faded(pa))
			}
		}
	}

	return Result{
		MatchPercentage: float64(total-differing) / float64(total) * 100,
		DiffPixels:      differing,
		TotalPixels:     total,
		Width:           width,
		Height:          height,
		Diff:            diff,
	}, nil
}

// EncodePNG encodes the diff image for transport.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode diff: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the diff image to path, creating parent directories as needed.
// Best effort; no durability guarantee.
func Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create diff dir: %w", err)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("save diff: %w", err)
	}
	return nil
}

func pixelAt(img *image.NRGBA, x, y int) color.NRGBA {
	return img.NRGBAAt(img.Bounds().Min.X+x, img.Bounds().Min.Y+y)
}

// faded renders an unchanged pixel as washed-out grayscale so changed
// regions stand out in the diff image.
func faded(p color.NRGBA) color.NRGBA {
	y := rgb2y(float64(p.R), float64(p.G), float64(p.B))
	v := uint8(255 - (255-y)*0.1)
	return color.NRGBA{R: v, G: v, B: v, A: 255}
}

// colorDelta is the squared YIQ color distance used by perceptual pixel
// matchers; alpha is blended against white first.
func colorDelta(a, b color.NRGBA) float64 {
	r1, g1, b1 := blendWhite(a)
	r2, g2, b2 := blendWhite(b)

	dy := rgb2y(r1, g1, b1) - rgb2y(r2, g2, b2)
	di := rgb2i(r1, g1, b1) - rgb2i(r2, g2, b2)
	dq := rgb2q(r1, g1, b1) - rgb2q(r2, g2, b2)

	return 0.5053*dy*dy + 0.299*di*di + 0.1957*dq*dq
}

func blendWhite(p color.NRGBA) (r, g, b float64) {
	if p.A == 255 {
		return float64(p.R), float64(p.G), float64(p.B)
	}
	alpha := float64(p.A) / 255
	blend := func(c uint8) float64 {
		return 255 + (float64(c)-255)*alpha
	}
	return blend(p.R), blend(p.G), blend(p.B)
}

func rgb2y(r, g, b float64) float64 {
	return r*0.29889531 + g*0.58662247 + b*0.11448223
}

func rgb2i(r, g, b float64) float64 {
	return r*0.59597799 - g*0.27417610 - b*0.32180189
}

func rgb2q(r, g, b float64) float64 {
	return r*0.21147017 - g*0.52261711 + b*0.31114694
}
