// Package photoshop drives an installed Adobe Photoshop to update a PSD
// template, as an alternative to the in-process renderer.
package photoshop

import (
	"bytes"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/gnemet/PosterForge/internal/poster"
)

//go:embed update_poster.jsx.tmpl
var scriptSource string

var scriptTmpl = template.Must(template.New("update_poster.jsx").
	Funcs(template.FuncMap{"quote": quoteJS}).
	Parse(scriptSource))

type scriptData struct {
	Template    string
	Folder      string
	LayeredPath string
	WebPath     string
	StatusPath  string
	Quality     int
	Fields      []poster.Field
}

var jsEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", "",
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

// quoteJS returns s as a double-quoted ExtendScript string literal.
func quoteJS(s string) string {
	return `"` + jsEscaper.Replace(s) + `"`
}

// RenderScript builds the ExtendScript that opens templatePath, fills the
// fields of req and writes both outputs. Its result ("ok" or "error: ...")
// is written to statusPath.
func RenderScript(templatePath, statusPath string, req poster.Request) ([]byte, error) {
	data := scriptData{
		Template:    filepath.ToSlash(templatePath),
		Folder:      filepath.ToSlash(req.Folder),
		LayeredPath: filepath.ToSlash(req.LayeredPath()),
		WebPath:     filepath.ToSlash(req.WebPath()),
		StatusPath:  filepath.ToSlash(statusPath),
		Quality:     poster.WebQuality,
		Fields:      req.Fields(),
	}
	var buf bytes.Buffer
	if err := scriptTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render script: %w", err)
	}
	return buf.Bytes(), nil
}
