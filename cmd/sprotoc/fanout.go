package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// runFiles applies transform to every input file concurrently, bounded
// to workers in flight at once, and writes each result into outDir
// under the input's base name. This is the concrete exercise of the
// package's "concurrent callers each bring their own buffer" guarantee:
// every goroutine reads, transforms, and writes independently, sharing
// nothing but the logger.
func runFiles(inputs []string, outDir string, workers int, logger *zerolog.Logger, transform func([]byte) ([]byte, error)) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	if workers < 1 {
		workers = 1
	}

	g, _ := errgroup.WithContext(context.Background())
	sem := make(chan struct{}, workers)

	for _, in := range inputs {
		in := in
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			src, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			out, err := transform(src)
			if err != nil {
				logger.Error().Err(err).Str("file", in).Msg("transform failed")
				return err
			}
			dst := filepath.Join(outDir, filepath.Base(in))
			if err := os.WriteFile(dst, out, 0o644); err != nil {
				return err
			}
			logger.Debug().Str("in", in).Str("out", dst).Int("bytes", len(out)).Msg("wrote file")
			return nil
		})
	}
	return g.Wait()
}
