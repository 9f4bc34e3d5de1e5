package docs

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed page.md.tmpl index.md.tmpl
var tmplFS embed.FS

var tmpl = template.Must(template.ParseFS(tmplFS, "page.md.tmpl", "index.md.tmpl"))

const (
	indexFileName  = "index.md"
	readmeFileName = "README.md"
)

// renderPage renders one documentation page to Markdown.
func renderPage(page Page) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "page.md.tmpl", page); err != nil {
		return nil, fmt.Errorf("failed to render page for %s: %w", page.Source, err)
	}
	return buf.Bytes(), nil
}

// renderIndex renders the index page listing every generated page in
// discovery order.
func renderIndex(pages []Page) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "index.md.tmpl", struct{ Pages []Page }{pages}); err != nil {
		return nil, fmt.Errorf("failed to render index: %w", err)
	}
	return buf.Bytes(), nil
}
