package layers

import (
	"bufio"
	"image/jpeg"
	"os"
)

// DefaultQuality is the JPEG quality used when ExportOptions leaves it unset.
const DefaultQuality = 90

// ExportOptions controls the flattened web export.
type ExportOptions struct {
	Quality int // 1-100
}

// ExportWeb flattens the document and writes it to path as a baseline JPEG
// without an embedded color profile. An existing file is overwritten.
func (d *Document) ExportWeb(path string, opts ExportOptions) error {
	q := opts.Quality
	if q <= 0 {
		q = DefaultQuality
	}
	if q > 100 {
		q = 100
	}

	img, err := Flatten(d)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := jpeg.Encode(bw, img, &jpeg.Options{Quality: q}); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
