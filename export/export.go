// Package export writes consolidated data sets to local JSON files.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gurre/multidata/jsonutil"
	"github.com/gurre/multidata/metrics"
)

// JSON writes v as indented JSON to path, creating parent directories as
// needed. Empty values are stripped before encoding.
func JSON(path string, v any) error {
	data, err := jsonutil.MarshalIndent(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// All writes every named data set under folder/dataType as <name>.json,
// using up to workers concurrent writers. The first failure is returned but
// remaining writes still run.
func All(ctx context.Context, folder, dataType string, files map[string]any, workers int, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}

	dir := filepath.Join(folder, dataType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	run := metrics.NewRun()
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for name, data := range files {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(name string, data any) {
			defer wg.Done()
			defer func() { <-sem }()

			path := filepath.Join(dir, name+".json")
			if err := JSON(path, data); err != nil {
				run.ItemFailed()
				log.Error("failed to export file", "path", path, "error", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			run.ItemProcessed()
			log.Debug("exported file", "path", path)
		}(name, data)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	report := run.Report()
	log.Info("export completed", "folder", dir, "files", report.Items, "duration", report.Duration)
	return nil
}
