package engine

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/facefinder/facefinder/internal/constants"
	"github.com/facefinder/facefinder/internal/face"
)

// Annotator draws match boxes and scores onto copies of matched images.
type Annotator struct {
	Color     color.RGBA
	LineWidth int
	Padding   int
}

// NewAnnotator builds an annotator from a hex color string ("#rrggbb").
// Invalid colors fall back to green, the historical annotation color.
func NewAnnotator(hexColor string, lineWidth, padding int) *Annotator {
	c, err := parseHexColor(hexColor)
	if err != nil {
		c = color.RGBA{0, 255, 0, 255}
	}
	if lineWidth <= 0 {
		lineWidth = 2
	}
	return &Annotator{Color: c, LineWidth: lineWidth, Padding: padding}
}

func parseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{r, g, b, 255}, nil
}

// drawHLine draws a horizontal line on the image.
func drawHLine(dst *image.RGBA, x1, x2, y int, c color.RGBA) {
	bounds := dst.Bounds()
	if y < bounds.Min.Y || y >= bounds.Max.Y {
		return
	}
	for x := x1; x <= x2; x++ {
		if x >= bounds.Min.X && x < bounds.Max.X {
			dst.Set(x, y, c)
		}
	}
}

// drawVLine draws a vertical line on the image.
func drawVLine(dst *image.RGBA, y1, y2, x int, c color.RGBA) {
	bounds := dst.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X {
		return
	}
	for y := y1; y <= y2; y++ {
		if y >= bounds.Min.Y && y < bounds.Max.Y {
			dst.Set(x, y, c)
		}
	}
}

// Annotate returns a copy of img with each record's box and score drawn on it.
// The source image is never modified.
func (a *Annotator) Annotate(img image.Image, matches []face.MatchRecord) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	for _, m := range matches {
		x1 := m.Box.X1 - a.Padding
		y1 := m.Box.Y1 - a.Padding
		x2 := m.Box.X2 + a.Padding
		y2 := m.Box.Y2 + a.Padding

		for w := 0; w < a.LineWidth; w++ {
			drawHLine(dst, x1, x2, y1+w, a.Color)
			drawHLine(dst, x1, x2, y2-w, a.Color)
			drawVLine(dst, y1, y2, x1+w, a.Color)
			drawVLine(dst, y1, y2, x2+w, a.Color)
		}

		a.drawScore(dst, x1, y1, m.Score)
	}

	return dst
}

// drawScore renders the similarity score just above the box, clamped so the
// label stays inside the image.
func (a *Annotator) drawScore(dst *image.RGBA, x, y int, score float64) {
	labelY := y - 4
	if labelY < 13 {
		labelY = 13
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(a.Color),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, labelY),
	}
	d.DrawString(fmt.Sprintf("%.2f", score))
}

// Save persists an annotated image under path, creating parent directories.
// The encoder follows the file extension; anything that is not .png is
// written as JPEG.
func (a *Annotator) Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.Create(path) //nolint:gosec // path is derived from an enumerated directory entry
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".png") {
		if err := png.Encode(f, img); err != nil {
			return fmt.Errorf("encoding png: %w", err)
		}
		return nil
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: constants.AnnotatedJPEGQuality}); err != nil {
		return fmt.Errorf("encoding jpeg: %w", err)
	}
	return nil
}

// Thumbnail scales an image to the given height keeping aspect ratio.
func Thumbnail(img image.Image, height int) image.Image {
	bounds := img.Bounds()
	if bounds.Dy() <= height {
		return img
	}
	width := bounds.Dx() * height / bounds.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
