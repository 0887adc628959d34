package layers

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"unicode/utf16"

	"golang.org/x/image/draw"
)

// PSD section divider types (the "lsct" additional layer info).
const (
	sectionNone       = 0
	sectionOpenFolder = 1
	sectionDivider    = 3
)

const groupEndName = "</Layer group>"

// psdChannelIDs is the channel order written for every layer: alpha, red, green, blue.
var psdChannelIDs = [4]int16{-1, 0, 1, 2}

type psdRecord struct {
	name     string
	rect     image.Rectangle
	channels [4][]byte
	hidden   bool
	section  uint32
}

// SaveLayered writes the document to path as an 8-bit RGB Photoshop file,
// keeping every layer and group. An existing file is overwritten. The file
// is encoded in memory first, so a layer that fails to render leaves path
// untouched.
func (d *Document) SaveLayered(path string) error {
	var buf bytes.Buffer
	if err := d.WritePSD(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// WritePSD encodes the document as a layered PSD. Text layers are stored as
// rasterized pixel layers under their own name.
func (d *Document) WritePSD(w io.Writer) error {
	if err := checkCanvas(d.Width, d.Height); err != nil {
		return err
	}

	var records []psdRecord
	if err := appendRecords(&records, d.Layers); err != nil {
		return err
	}
	layerInfo, err := encodeLayerInfo(records)
	if err != nil {
		return err
	}
	flat, err := Flatten(d)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	be := binary.BigEndian

	// Header
	bw.WriteString("8BPS")
	binary.Write(bw, be, uint16(1))
	bw.Write(make([]byte, 6))
	binary.Write(bw, be, uint16(3))
	binary.Write(bw, be, uint32(d.Height))
	binary.Write(bw, be, uint32(d.Width))
	binary.Write(bw, be, uint16(8))
	binary.Write(bw, be, uint16(3)) // RGB

	// Color mode data and image resources are empty.
	binary.Write(bw, be, uint32(0))
	binary.Write(bw, be, uint32(0))

	binary.Write(bw, be, uint32(4+len(layerInfo)+4))
	binary.Write(bw, be, uint32(len(layerInfo)))
	bw.Write(layerInfo)
	binary.Write(bw, be, uint32(0)) // global layer mask info

	// Composite image, raw planar RGB.
	binary.Write(bw, be, uint16(0))
	planes := nrgbaPlanes(flat)
	for _, p := range planes[1:] {
		bw.Write(p)
	}

	return bw.Flush()
}

// appendRecords lists layer records bottom-most first, bracketing each
// group's children between a divider record and the folder record.
func appendRecords(out *[]psdRecord, nodes []Node) error {
	for i := len(nodes) - 1; i >= 0; i-- {
		switch l := nodes[i].(type) {
		case *Group:
			*out = append(*out, psdRecord{name: groupEndName, hidden: l.Hidden, section: sectionDivider})
			if err := appendRecords(out, l.Layers); err != nil {
				return err
			}
			*out = append(*out, psdRecord{name: l.Name, hidden: l.Hidden, section: sectionOpenFolder})
		default:
			rec := psdRecord{name: l.LayerName(), hidden: !l.IsVisible()}
			img, err := Rasterize(l)
			if err != nil {
				return fmt.Errorf("layer %q: %w", l.LayerName(), err)
			}
			if img != nil {
				rec.rect = img.Bounds()
				rec.channels = nrgbaPlanes(img)
			}
			*out = append(*out, rec)
		}
	}
	return nil
}

// encodeLayerInfo fails when the records do not fit the signed 16-bit layer count.
func encodeLayerInfo(records []psdRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if len(records) > math.MaxInt16 {
		return nil, fmt.Errorf("%d layer records, a PSD holds at most %d", len(records), math.MaxInt16)
	}
	var buf bytes.Buffer
	be := binary.BigEndian

	binary.Write(&buf, be, int16(len(records)))
	for _, r := range records {
		binary.Write(&buf, be, int32(r.rect.Min.Y))
		binary.Write(&buf, be, int32(r.rect.Min.X))
		binary.Write(&buf, be, int32(r.rect.Max.Y))
		binary.Write(&buf, be, int32(r.rect.Max.X))

		binary.Write(&buf, be, uint16(len(psdChannelIDs)))
		for i, id := range psdChannelIDs {
			binary.Write(&buf, be, id)
			binary.Write(&buf, be, uint32(2+len(r.channels[i])))
		}

		buf.WriteString("8BIMnorm")
		var flags byte
		if r.hidden {
			flags |= 0x02
		}
		if r.section != sectionNone {
			flags |= 0x18
		}
		buf.Write([]byte{255, 0, flags, 0})

		extra := encodeExtraData(r)
		binary.Write(&buf, be, uint32(len(extra)))
		buf.Write(extra)
	}

	for _, r := range records {
		for _, ch := range r.channels {
			binary.Write(&buf, be, uint16(0))
			buf.Write(ch)
		}
	}

	if buf.Len()%2 != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

func encodeExtraData(r psdRecord) []byte {
	var buf bytes.Buffer
	be := binary.BigEndian

	binary.Write(&buf, be, uint32(0)) // layer mask
	binary.Write(&buf, be, uint32(0)) // blending ranges
	buf.Write(pascalName(r.name))

	if r.section != sectionNone {
		buf.WriteString("8BIMlsct")
		binary.Write(&buf, be, uint32(4))
		binary.Write(&buf, be, r.section)
	}

	units := utf16.Encode([]rune(r.name))
	buf.WriteString("8BIMluni")
	binary.Write(&buf, be, uint32(4+2*len(units)))
	binary.Write(&buf, be, uint32(len(units)))
	binary.Write(&buf, be, units)

	return buf.Bytes()
}

// pascalName encodes the legacy ASCII layer name, padded to a multiple of
// four bytes. The full name goes into the "luni" block.
func pascalName(name string) []byte {
	b := make([]byte, 0, len(name))
	for _, r := range name {
		if r > 0x7e || r < 0x20 {
			r = '?'
		}
		b = append(b, byte(r))
		if len(b) == 255 {
			break
		}
	}
	out := append([]byte{byte(len(b))}, b...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

// nrgbaPlanes splits an image into straight-alpha A, R, G, B planes.
func nrgbaPlanes(img image.Image) [4][]byte {
	b := img.Bounds()
	n := image.NewNRGBA(b)
	draw.Draw(n, b, img, b.Min, draw.Src)

	var planes [4][]byte
	size := b.Dx() * b.Dy()
	for i := range planes {
		planes[i] = make([]byte, size)
	}
	for y := 0; y < b.Dy(); y++ {
		row := n.Pix[y*n.Stride:]
		for x := 0; x < b.Dx(); x++ {
			px := row[x*4 : x*4+4]
			i := y*b.Dx() + x
			planes[0][i] = px[3]
			planes[1][i] = px[0]
			planes[2][i] = px[1]
			planes[3][i] = px[2]
		}
	}
	return planes
}
