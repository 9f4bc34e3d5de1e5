package docs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Generator walks a source tree and writes rendered documentation pages.
type Generator struct {
	cfg Config
}

// NewGenerator validates the configuration and returns a ready Generator.
//
// Example:
//
//	gen, err := docs.NewGenerator(docs.Config{Root: ".", Dest: "docs/api"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := gen.Generate(ctx)
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Generator{cfg: cfg}, nil
}

// Generate scans the root tree, parses every matching source file and writes
// one Markdown page per file plus an index page under the destination
// directory. Pages and the index are ordered by the deterministic discovery
// order (lexicographic by relative path), so identical input trees always
// produce identical output.
//
// Files that fail to parse are skipped and reported in Result.Warnings. A
// file-name collision aborts the run with ErrDocumentationConflict before any
// page is written.
func (g *Generator) Generate(ctx context.Context) (Result, error) {
	files, err := g.discover()
	if err != nil {
		return Result{}, err
	}

	// Parse on a bounded worker pool. Results land in discovery-order slots
	// so the output never depends on completion order.
	type outcome struct {
		page *Page
		warn *Warning
	}
	outcomes := make([]outcome, len(files))

	tasks := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < g.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				rel := files[i]
				page, err := parseFile(filepath.Join(g.cfg.Root, rel), rel)
				if err != nil {
					outcomes[i] = outcome{warn: &Warning{Path: rel, Err: err}}
					continue
				}
				if len(page.Units) == 0 {
					continue
				}
				outcomes[i] = outcome{page: &page}
			}
		}()
	}

	dispatch := func() error {
		defer close(tasks)
		for i := range files {
			select {
			case tasks <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
	dispatchErr := dispatch()
	wg.Wait()
	if dispatchErr != nil {
		return Result{}, dispatchErr
	}

	// Assemble pages in discovery order and detect file-name collisions in a
	// single pass before anything touches the destination directory.
	var res Result
	owners := map[string]string{indexFileName: "the index page"}
	if g.cfg.Readme != "" {
		owners[readmeFileName] = "the project readme"
	}
	for _, o := range outcomes {
		if o.warn != nil {
			g.cfg.Logger.Warn("skipping source file that failed to parse",
				"path", o.warn.Path, "error", o.warn.Err)
			res.Warnings = append(res.Warnings, *o.warn)
			continue
		}
		if o.page == nil {
			continue
		}
		if owner, taken := owners[o.page.FileName]; taken {
			return Result{}, fmt.Errorf("%w: %s and %s both map to %s",
				ErrDocumentationConflict, owner, o.page.Source, o.page.FileName)
		}
		owners[o.page.FileName] = o.page.Source
		res.Pages = append(res.Pages, *o.page)
	}

	if err := os.MkdirAll(g.cfg.Dest, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create destination directory: %w", err)
	}

	for _, page := range res.Pages {
		body, err := renderPage(page)
		if err != nil {
			return Result{}, err
		}
		if err := g.writeFile(page.FileName, body); err != nil {
			return Result{}, err
		}
	}

	index, err := renderIndex(res.Pages)
	if err != nil {
		return Result{}, err
	}
	if err := g.writeFile(indexFileName, index); err != nil {
		return Result{}, err
	}

	if err := g.copyReadme(); err != nil {
		return Result{}, err
	}

	return res, nil
}

// copyReadme copies the configured project readme into the destination
// directory. A missing readme file is skipped, not an error.
func (g *Generator) copyReadme() error {
	if g.cfg.Readme == "" {
		return nil
	}
	data, err := os.ReadFile(g.cfg.Readme)
	if err != nil {
		if os.IsNotExist(err) {
			g.cfg.Logger.Warn("readme not found, skipping copy", "path", g.cfg.Readme)
			return nil
		}
		return fmt.Errorf("failed to read readme %s: %w", g.cfg.Readme, err)
	}
	if err := g.writeFile(readmeFileName, data); err != nil {
		return err
	}
	g.cfg.Logger.Info("copied readme into documentation", "path", g.cfg.Readme)
	return nil
}

// discover lists the relative paths of all matching source files, sorted
// lexicographically. Hidden directories and underscore-prefixed directories
// are skipped; the Go toolchain ignores the latter too.
func (g *Generator) discover() ([]string, error) {
	var files []string
	err := filepath.WalkDir(g.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != g.cfg.Root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}

		if !g.matchExtension(name) {
			return nil
		}
		rel, err := filepath.Rel(g.cfg.Root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if g.excluded(rel, name) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan root directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

func (g *Generator) matchExtension(name string) bool {
	ext := filepath.Ext(name)
	for _, want := range g.cfg.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

func (g *Generator) excluded(rel, base string) bool {
	for _, pattern := range g.cfg.Exclude {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func (g *Generator) writeFile(name string, body []byte) error {
	path := filepath.Join(g.cfg.Dest, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// outputName derives the destination file name from a relative source path:
// path separators become underscores and the source extension becomes ".md".
// "internal/api/server.go" renders to "internal_api_server.md".
func outputName(rel string) string {
	base := strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.NewReplacer("/", "_", "\\", "_").Replace(base) + ".md"
}

// modulePath turns a relative source path into a dotted module path used for
// page titles and qualified declaration names.
func modulePath(rel string) string {
	base := strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.NewReplacer("/", ".", "\\", ".").Replace(base)
}
