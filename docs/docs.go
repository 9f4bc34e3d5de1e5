// Package docs generates Markdown documentation from Go source trees. It
// statically parses declarations out of each source file, never loading or
// executing the code, and renders one page per file plus an index page.
package docs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// ErrDocumentationConflict is returned when two source files normalize to the
// same output file name. The run aborts before anything is written.
var ErrDocumentationConflict = errors.New("docs: documentation conflict")

// Param is one parameter of a documented callable. Default holds the default
// literal when the host language declares one; Go declarations leave it empty.
type Param struct {
	Name    string
	Type    string
	Default string
}

// Unit is one declaration extracted from a source file.
type Unit struct {
	Qualified string  // dotted path: relative file path + declaration name
	Kind      string  // "type", "func" or "method"
	Params    []Param // ordered parameter list, empty for types
	Doc       string  // leading doc comment, trimmed; empty when absent
	Line      int     // line of the declaration in its source file
}

// Page is one rendered documentation page covering a single source file.
type Page struct {
	Title    string // dotted module path of the source file
	Source   string // source file path relative to the root
	FileName string // output file name under the destination directory
	Units    []Unit
}

// Warning records a source file that was skipped because it failed to parse.
// Warnings are non-fatal; the run continues with the remaining files.
type Warning struct {
	Path string
	Err  error
}

// Result holds the rendered pages in discovery order along with any per-file
// parse warnings collected during the run.
type Result struct {
	Pages    []Page
	Warnings []Warning
}

// Config holds the generation parameters.
type Config struct {
	Root       string       // directory tree to scan, must exist and be readable
	Dest       string       // output directory, created if absent
	Extensions []string     // source extensions to include, defaults to [".go"]
	Exclude    []string     // glob patterns matched against relative paths and base names
	Readme     string       // optional README to copy into the destination; skipped when absent
	Workers    int          // parse workers, defaults to 4
	Logger     *slog.Logger // defaults to slog.Default()
}

// Validate ensures the configuration is usable and fills in defaults.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root directory is required")
	}
	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("root directory is not readable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", c.Root)
	}

	if c.Dest == "" {
		return fmt.Errorf("destination directory is required")
	}

	if len(c.Extensions) == 0 {
		c.Extensions = []string{".go"}
	}
	if c.Exclude == nil {
		c.Exclude = []string{"*_test.go"}
	}
	if c.Workers < 1 {
		c.Workers = 4
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}
