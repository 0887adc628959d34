// Package poster fills the City, Venue and Date fields of a poster template
// and writes the layered and web versions of the result.
package poster

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gnemet/PosterForge/internal/layers"
)

// Text layer names replaced by Update, in the order they are applied.
const (
	FieldCity  = "City"
	FieldVenue = "Venue"
	FieldDate  = "Date"
)

// Output file names written into Request.Folder.
const (
	LayeredFileName = "Poster.psd"
	WebFileName     = "Poster.jpg"
	WebQuality      = 90
)

var (
	ErrNoDocument     = errors.New("no active document")
	ErrFolderNotFound = errors.New("destination folder does not exist")
)

// Request holds the replacement strings and the destination folder.
// Values are passed through unvalidated.
type Request struct {
	City   string `json:"city"`
	Venue  string `json:"venue"`
	Date   string `json:"date"`
	Folder string `json:"folder"`
}

// Field is one text layer name and the value it receives.
type Field struct {
	Name  string
	Value string
}

func (r Request) Fields() []Field {
	return []Field{
		{Name: FieldCity, Value: r.City},
		{Name: FieldVenue, Value: r.Venue},
		{Name: FieldDate, Value: r.Date},
	}
}

func (r Request) LayeredPath() string { return filepath.Join(r.Folder, LayeredFileName) }
func (r Request) WebPath() string     { return filepath.Join(r.Folder, WebFileName) }

// Document is an open layered document that can be saved in both output formats.
type Document interface {
	layers.Container
	SaveLayered(path string) error
	ExportWeb(path string, opts layers.ExportOptions) error
}

// HostError is a failed document or file operation. It aborts the update.
type HostError struct {
	Op   string
	Path string
	Err  error
}

func (e *HostError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *HostError) Unwrap() error { return e.Err }

// Update replaces the three fields in doc, then saves Poster.psd and exports
// Poster.jpg into req.Folder, overwriting both. Fields missing from the
// template are skipped. The first failing step aborts the rest; files already
// written are left in place.
func Update(doc Document, req Request) error {
	if isNilDocument(doc) {
		return &HostError{Op: "open document", Err: ErrNoDocument}
	}
	if err := CheckFolder(req.Folder); err != nil {
		return err
	}

	for _, f := range req.Fields() {
		l, _ := layers.FindTextLayer(doc, f.Name)
		layers.SetText(l, f.Value)
	}

	psd := req.LayeredPath()
	if err := doc.SaveLayered(psd); err != nil {
		return &HostError{Op: "save", Path: psd, Err: err}
	}

	jpg := req.WebPath()
	if err := doc.ExportWeb(jpg, layers.ExportOptions{Quality: WebQuality}); err != nil {
		return &HostError{Op: "export", Path: jpg, Err: err}
	}
	return nil
}

func isNilDocument(doc Document) bool {
	if doc == nil {
		return true
	}
	d, ok := doc.(*layers.Document)
	return ok && d == nil
}

// CheckFolder reports a HostError unless dir is an existing directory.
func CheckFolder(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrFolderNotFound
		}
		return &HostError{Op: "open folder", Path: dir, Err: err}
	}
	if !info.IsDir() {
		return &HostError{Op: "open folder", Path: dir, Err: errors.New("not a directory")}
	}
	return nil
}

// Engine performs a complete update for one request.
type Engine interface {
	Update(ctx context.Context, req Request) error
}

// NativeEngine opens a YAML template from disk on every run and renders it in process.
type NativeEngine struct {
	TemplatePath string
}

func (e *NativeEngine) Update(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.TemplatePath == "" {
		return &HostError{Op: "open template", Err: ErrNoDocument}
	}
	doc, err := layers.LoadTemplate(e.TemplatePath)
	if err != nil {
		return &HostError{Op: "open template", Path: e.TemplatePath, Err: err}
	}
	return Update(doc, req)
}
