package layers

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	// MaxDimension bounds canvas sizes, layer sizes, offsets and text sizes
	// in pixels. It is also the largest canvas a version 1 PSD can hold.
	MaxDimension = 30000

	// DefaultTextSize is the pixel size of text layers without a size.
	DefaultTextSize = 13
)

// ErrTooLarge is returned when a layer would not fit within MaxDimension.
var ErrTooLarge = errors.New("layer exceeds maximum dimension")

// Go Regular covers Latin-1 and Latin Extended-A, so accented field values
// render with their real glyphs.
var loadTextFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

// newTextFace returns a face for size pixels. Faces are not safe for
// concurrent use, so every rasterization opens its own.
func newTextFace(size int) (font.Face, error) {
	f, err := loadTextFont()
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Rasterize renders a leaf node to an image whose bounds are the node's
// position on the canvas. Groups and empty layers return nil.
func Rasterize(n Node) (*image.RGBA, error) {
	switch l := n.(type) {
	case *TextLayer:
		return rasterizeText(l)
	case *PixelLayer:
		return rasterizePixels(l)
	default:
		return nil, nil
	}
}

// Flatten composites all visible layers bottom-up over the background.
func Flatten(d *Document) (*image.RGBA, error) {
	if err := checkCanvas(d.Width, d.Height); err != nil {
		return nil, err
	}
	canvas := image.NewRGBA(image.Rect(0, 0, d.Width, d.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(d.Background), image.Point{}, draw.Src)
	if err := composite(canvas, d.Layers); err != nil {
		return nil, err
	}
	return canvas, nil
}

func checkCanvas(w, h int) error {
	if w <= 0 || h <= 0 || w > MaxDimension || h > MaxDimension {
		return fmt.Errorf("invalid canvas size %dx%d", w, h)
	}
	return nil
}

func checkOffset(x, y int) error {
	if x < -MaxDimension || x > MaxDimension || y < -MaxDimension || y > MaxDimension {
		return fmt.Errorf("offset %d,%d: %w", x, y, ErrTooLarge)
	}
	return nil
}

func composite(dst *image.RGBA, nodes []Node) error {
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		if !n.IsVisible() {
			continue
		}
		if g, ok := n.(*Group); ok {
			if err := composite(dst, g.Layers); err != nil {
				return err
			}
			continue
		}
		img, err := Rasterize(n)
		if err != nil {
			return fmt.Errorf("layer %q: %w", n.LayerName(), err)
		}
		if img != nil {
			draw.Draw(dst, img.Bounds(), img, img.Bounds().Min, draw.Over)
		}
	}
	return nil
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}

func rasterizeText(t *TextLayer) (*image.RGBA, error) {
	if t.Text == "" {
		return nil, nil
	}
	size := t.Size
	if size <= 0 {
		size = DefaultTextSize
	}
	if size > MaxDimension {
		return nil, fmt.Errorf("text size %d: %w", size, ErrTooLarge)
	}
	if err := checkOffset(t.X, t.Y); err != nil {
		return nil, err
	}

	face, err := newTextFace(size)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	m := face.Metrics()
	lineHeight := m.Height.Ceil()
	lines := splitLines(t.Text)
	if lineHeight <= 0 || len(lines) > MaxDimension/lineHeight {
		return nil, fmt.Errorf("%d lines at size %d: %w", len(lines), size, ErrTooLarge)
	}

	// Advances are summed one glyph at a time so long lines fail the bound
	// before the 26.6 fixed-point width can overflow.
	width := 0
	for _, line := range lines {
		w := 0
		for _, r := range line {
			adv, _ := face.GlyphAdvance(r)
			w += adv.Ceil()
			if w > MaxDimension {
				return nil, fmt.Errorf("text width at size %d: %w", size, ErrTooLarge)
			}
		}
		width = max(width, w)
	}
	if width == 0 {
		return nil, nil
	}

	dst := image.NewRGBA(image.Rect(t.X, t.Y, t.X+width, t.Y+lineHeight*len(lines)))
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(t.Color), Face: face}
	for i, line := range lines {
		d.Dot = fixed.P(t.X, t.Y+i*lineHeight+m.Ascent.Ceil())
		d.DrawString(line)
	}
	return dst, nil
}

func rasterizePixels(p *PixelLayer) (*image.RGBA, error) {
	if p.Image == nil {
		return nil, nil
	}
	b := p.Image.Bounds()
	if b.Empty() {
		return nil, nil
	}
	if b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		return nil, fmt.Errorf("image %dx%d: %w", b.Dx(), b.Dy(), ErrTooLarge)
	}
	if err := checkOffset(p.X, p.Y); err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(p.X, p.Y, p.X+b.Dx(), p.Y+b.Dy()))
	draw.Draw(dst, dst.Bounds(), p.Image, b.Min, draw.Src)
	return dst, nil
}
