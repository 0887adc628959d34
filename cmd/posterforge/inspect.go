package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/gnemet/PosterForge/internal/i18n"
	"github.com/gnemet/PosterForge/internal/layers"
	"github.com/gnemet/PosterForge/internal/poster"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [template]",
	Short: "Print the layer tree of a template and which poster fields it provides",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Storage.Template
		if len(args) == 1 {
			path = args[0]
		}
		doc, err := layers.LoadTemplate(path)
		if err != nil {
			return err
		}
		printLayerTree(cmd.OutOrStdout(), doc, cfg.Application.Language)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func printLayerTree(w io.Writer, doc *layers.Document, lang string) {
	fmt.Fprintf(w, "%dx%d\n", doc.Width, doc.Height)
	layers.Walk(doc, func(n layers.Node, depth int) {
		hidden := ""
		if !n.IsVisible() {
			hidden = " (hidden)"
		}
		fmt.Fprintf(w, "%s%s %q%s\n", strings.Repeat("  ", depth), n.Kind(), n.LayerName(), hidden)
	})

	if len(layers.TextLayerNames(doc)) == 0 {
		fmt.Fprintln(w, i18n.T(lang, "poster.no_fields"))
		return
	}
	for _, f := range (poster.Request{}).Fields() {
		state := "ok"
		if _, ok := layers.FindTextLayer(doc, f.Name); !ok {
			state = "missing"
		}
		fmt.Fprintf(w, "%s: %s\n", f.Name, state)
	}
}
