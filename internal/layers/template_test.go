package layers

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const posterYAML = `
width: 200
height: 300
background: "#102030"
layers:
  - name: Info
    type: group
    layers:
      - name: City
        text: CITY
        x: 10
        y: 20
        size: 26
        color: "#fff"
      - name: Venue
        type: text
        text: VENUE
      - name: Date
        text: DATE
        hidden: true
  - name: Logo
    image: logo.png
    x: 5
    y: 6
  - name: Band
    fill: "#ff0000"
    width: 200
    height: 40
`

func writeLogo(t *testing.T, dir string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	f, err := os.Create(filepath.Join(dir, "logo.png"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadTemplate(t *testing.T) {
	dir := t.TempDir()
	writeLogo(t, dir)
	path := filepath.Join(dir, "poster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(posterYAML), 0644))

	doc, err := LoadTemplate(path)
	require.NoError(t, err)

	assert.Equal(t, 200, doc.Width)
	assert.Equal(t, 300, doc.Height)
	assert.Equal(t, color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}, doc.Background)
	require.Len(t, doc.Layers, 3)

	info, ok := doc.Layers[0].(*Group)
	require.True(t, ok)
	require.Len(t, info.Layers, 3)

	city := info.Layers[0].(*TextLayer)
	assert.Equal(t, "CITY", city.Text)
	assert.Equal(t, 10, city.X)
	assert.Equal(t, 26, city.Size)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, city.Color)
	assert.True(t, info.Layers[2].(*TextLayer).Hidden)

	logo := doc.Layers[1].(*PixelLayer)
	assert.Equal(t, 4, logo.Image.Bounds().Dx())

	band := doc.Layers[2].(*PixelLayer)
	assert.Equal(t, image.Rect(0, 0, 200, 40), band.Image.Bounds())
}

func TestParseTemplate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad size", "width: 0\nheight: 10\n"},
		{"bad yaml", "width: [\n"},
		{"unknown type", "width: 1\nheight: 1\nlayers:\n  - name: X\n    type: shape\n"},
		{"fill without size", "width: 1\nheight: 1\nlayers:\n  - name: X\n    fill: '#000'\n"},
		{"bad color", "width: 1\nheight: 1\nlayers:\n  - name: X\n    text: a\n    color: red\n"},
		{"missing image", "width: 1\nheight: 1\nlayers:\n  - name: X\n    image: nope.png\n"},
		{"canvas too large", "width: 30001\nheight: 10\n"},
		{"huge text size", "width: 10\nheight: 10\nlayers:\n  - name: City\n    text: a\n    size: 2000000000\n"},
		{"negative text size", "width: 10\nheight: 10\nlayers:\n  - name: City\n    text: a\n    size: -1\n"},
		{"huge fill", "width: 10\nheight: 10\nlayers:\n  - name: X\n    fill: '#000'\n    width: 40000\n    height: 1\n"},
		{"huge offset", "width: 10\nheight: 10\nlayers:\n  - name: X\n    text: a\n    x: 9000000000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate([]byte(tt.yaml), t.TempDir())
			assert.Error(t, err)
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#abc")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xaa, G: 0xbb, B: 0xcc, A: 0xff}, c)

	c, err = ParseColor("00000000")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{}, c)

	_, err = ParseColor("#12345")
	assert.Error(t, err)
}
