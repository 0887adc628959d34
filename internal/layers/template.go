package layers

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk YAML layout of a poster template.
type templateFile struct {
	Width      int         `yaml:"width"`
	Height     int         `yaml:"height"`
	Background string      `yaml:"background"`
	Layers     []layerSpec `yaml:"layers"`
}

type layerSpec struct {
	Name   string      `yaml:"name"`
	Type   string      `yaml:"type"`
	Hidden bool        `yaml:"hidden"`
	X      int         `yaml:"x"`
	Y      int         `yaml:"y"`
	Text   string      `yaml:"text"`
	Size   int         `yaml:"size"`
	Color  string      `yaml:"color"`
	Fill   string      `yaml:"fill"`
	Width  int         `yaml:"width"`
	Height int         `yaml:"height"`
	Image  string      `yaml:"image"`
	Layers []layerSpec `yaml:"layers"`
}

// LoadTemplate opens a YAML poster template. Relative image paths are
// resolved against the template's directory.
func LoadTemplate(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	doc, err := ParseTemplate(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return doc, nil
}

// ParseTemplate builds a document from YAML template data.
func ParseTemplate(data []byte, baseDir string) (*Document, error) {
	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("invalid template yaml: %w", err)
	}
	if err := checkCanvas(tf.Width, tf.Height); err != nil {
		return nil, err
	}

	bg := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	if tf.Background != "" {
		c, err := ParseColor(tf.Background)
		if err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
		bg = c
	}

	nodes, err := buildNodes(tf.Layers, baseDir)
	if err != nil {
		return nil, err
	}

	return &Document{
		Width:      tf.Width,
		Height:     tf.Height,
		Background: bg,
		Layers:     nodes,
	}, nil
}

func buildNodes(specs []layerSpec, baseDir string) ([]Node, error) {
	nodes := make([]Node, 0, len(specs))
	for i, s := range specs {
		n, err := buildNode(s, baseDir)
		if err != nil {
			name := s.Name
			if name == "" {
				name = "#" + strconv.Itoa(i)
			}
			return nil, fmt.Errorf("layer %q: %w", name, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func buildNode(s layerSpec, baseDir string) (Node, error) {
	kind := strings.ToLower(s.Type)
	if kind == "" {
		switch {
		case len(s.Layers) > 0:
			kind = "group"
		case s.Image != "" || s.Fill != "":
			kind = "pixel"
		default:
			kind = "text"
		}
	}

	if err := checkOffset(s.X, s.Y); err != nil {
		return nil, err
	}

	switch kind {
	case "group":
		children, err := buildNodes(s.Layers, baseDir)
		if err != nil {
			return nil, err
		}
		return &Group{Name: s.Name, Hidden: s.Hidden, Layers: children}, nil

	case "text":
		if s.Size < 0 || s.Size > MaxDimension {
			return nil, fmt.Errorf("text size %d out of range 0-%d", s.Size, MaxDimension)
		}
		c := color.RGBA{A: 255}
		if s.Color != "" {
			var err error
			if c, err = ParseColor(s.Color); err != nil {
				return nil, err
			}
		}
		return &TextLayer{
			Name:   s.Name,
			Text:   s.Text,
			X:      s.X,
			Y:      s.Y,
			Size:   s.Size,
			Color:  c,
			Hidden: s.Hidden,
		}, nil

	case "pixel", "image", "fill":
		img, err := loadPixels(s, baseDir)
		if err != nil {
			return nil, err
		}
		return &PixelLayer{Name: s.Name, X: s.X, Y: s.Y, Image: img, Hidden: s.Hidden}, nil

	default:
		return nil, fmt.Errorf("unknown layer type %q", s.Type)
	}
}

func loadPixels(s layerSpec, baseDir string) (image.Image, error) {
	if s.Image != "" {
		p := s.Image
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		cfg, _, err := image.DecodeConfig(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", p, err)
		}
		if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
			return nil, fmt.Errorf("image %s is %dx%d: %w", p, cfg.Width, cfg.Height, ErrTooLarge)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", p, err)
		}
		return img, nil
	}

	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("fill layer needs width and height")
	}
	if s.Width > MaxDimension || s.Height > MaxDimension {
		return nil, fmt.Errorf("fill %dx%d: %w", s.Width, s.Height, ErrTooLarge)
	}
	c, err := ParseColor(s.Fill)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img, nil
}

// ParseColor accepts #rgb, #rrggbb and #rrggbbaa. Alpha is straight in the
// input and premultiplied in the result.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	nc := color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}
	return color.RGBAModel.Convert(nc).(color.RGBA), nil
}
