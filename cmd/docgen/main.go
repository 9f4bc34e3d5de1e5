// Package main implements the documentation generator command. It scans a
// source tree and writes one Markdown page per source file plus an index.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gurre/multidata/docs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("docgen", flag.ExitOnError)

	root := fs.String("root", ".", "Source tree to document")
	dest := fs.String("dest", "docs", "Output directory for Markdown pages")
	extensions := fs.String("extensions", ".go", "Comma-separated source file extensions")
	exclude := fs.String("exclude", "*_test.go", "Comma-separated glob patterns to skip")
	readme := fs.String("readme", "", "README file to copy into the output directory")
	workers := fs.Int("workers", 4, "Number of concurrent file parsers")
	verbose := fs.Bool("verbose", false, "Enable debug logging")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := docs.Config{
		Root:       *root,
		Dest:       *dest,
		Extensions: splitList(*extensions),
		Exclude:    splitList(*exclude),
		Readme:     *readme,
		Workers:    *workers,
		Logger:     logger,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	gen, err := docs.NewGenerator(cfg)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	result, err := gen.Generate(context.Background())
	if err != nil {
		return fmt.Errorf("documentation generation failed: %w", err)
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", warning.Path, warning.Err)
	}
	fmt.Printf("Generated %d pages in %s\n", len(result.Pages), *dest)
	return nil
}

// splitList parses a comma-separated flag value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
