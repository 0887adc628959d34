// Package layers is the in-memory model of a layered poster document: a canvas
// holding a tree of groups, text layers and pixel layers, plus the two ways of
// persisting it (a layered PSD and a flattened JPEG).
package layers

import (
	"image"
	"image/color"
)

// Kind identifies the type of a node in the layer tree.
type Kind int

const (
	KindGroup Kind = iota
	KindText
	KindPixel
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindText:
		return "text"
	case KindPixel:
		return "pixel"
	default:
		return "unknown"
	}
}

// Node is a layer or a group of layers.
type Node interface {
	LayerName() string
	Kind() Kind
	IsVisible() bool
}

// Container is anything holding child nodes in document order (top-most first).
type Container interface {
	Children() []Node
}

// Document is an open template. Layers are listed top-most first, the same
// order a layers panel shows them.
type Document struct {
	Width      int
	Height     int
	Background color.RGBA
	Layers     []Node
}

func (d *Document) Children() []Node {
	if d == nil {
		return nil
	}
	return d.Layers
}

// Group is a folder of layers.
type Group struct {
	Name   string
	Hidden bool
	Layers []Node
}

func (g *Group) LayerName() string { return g.Name }
func (g *Group) Kind() Kind        { return KindGroup }
func (g *Group) IsVisible() bool   { return !g.Hidden }

func (g *Group) Children() []Node {
	if g == nil {
		return nil
	}
	return g.Layers
}

// TextLayer is a single-style text item anchored at its top-left corner.
// Size is the rendered line height in pixels; zero means the base font height.
type TextLayer struct {
	Name   string
	Text   string
	X, Y   int
	Size   int
	Color  color.RGBA
	Hidden bool
}

func (t *TextLayer) LayerName() string { return t.Name }
func (t *TextLayer) Kind() Kind        { return KindText }
func (t *TextLayer) IsVisible() bool   { return !t.Hidden }

// PixelLayer is raster content placed with its top-left corner at X, Y.
type PixelLayer struct {
	Name   string
	X, Y   int
	Image  image.Image
	Hidden bool
}

func (p *PixelLayer) LayerName() string { return p.Name }
func (p *PixelLayer) Kind() Kind        { return KindPixel }
func (p *PixelLayer) IsVisible() bool   { return !p.Hidden }
