package cmd

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-restore/images"
	"github.com/nvr-ai/go-restore/restoration"
	"github.com/nvr-ai/go-restore/util"
)

// batchCounter reports batch progress to the profiler.
type batchCounter struct {
	processed atomic.Int64
	failed    atomic.Int64
}

func (c *batchCounter) CollectMetrics() map[string]float64 {
	return map[string]float64{
		"batch.processed": float64(c.processed.Load()),
		"batch.failed":    float64(c.failed.Load()),
	}
}

// NewBatchCmd processes every image of a directory with the same mode and settings.
func NewBatchCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <input-dir> <output-dir>",
		Short: "restore or resize every image in a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keepGoing, _ := cmd.Flags().GetBool("keep-going")
			return a.runBatch(ctx, cmd, args[0], args[1], keepGoing)
		},
	}
	addJobFlags(cmd)
	cmd.Flags().Bool("keep-going", false, "continue with the next file when one fails")
	return cmd
}

func (a *app) runBatch(ctx context.Context, cmd *cobra.Command, inDir, outDir string, keepGoing bool) error {
	if name, _ := cmd.Flags().GetString("mode"); name == "inpaint" || name == "inpainting" {
		return errors.New("batch does not support inpainting; use run with --mask")
	}

	files, err := util.LoadDirectoryImageFiles(inDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no images found in %s", inDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", outDir)
	}

	counter := &batchCounter{}
	a.profiler.AddMetricsCollector(counter)

	a.logger.Info("batch started", zap.String("input_dir", inDir), zap.Int("files", len(files)))
	for _, file := range files {
		if ctx.Err() != nil {
			return restoration.ErrCancelled
		}
		err := a.batchFile(ctx, cmd, file, outDir)
		if err == nil {
			counter.processed.Add(1)
			continue
		}
		counter.failed.Add(1)
		if errors.Is(err, restoration.ErrCancelled) || !keepGoing {
			return errors.Wrapf(err, "%s", file.Name)
		}
		a.logger.Warn("batch file failed", zap.String("file", file.Name), zap.Error(err))
	}
	a.logger.Info("batch finished",
		zap.Int64("processed", counter.processed.Load()),
		zap.Int64("failed", counter.failed.Load()),
	)
	if n := counter.failed.Load(); n > 0 {
		return errors.Errorf("%d of %d files failed", n, len(files))
	}
	return nil
}

func (a *app) batchFile(ctx context.Context, cmd *cobra.Command, file util.ImageFile, outDir string) error {
	format, err := images.FormatFromPath(file.Path)
	if err != nil {
		return err
	}
	done := a.profiler.StartOperation("cli.decode")
	src, err := images.DecodeBytes(file.Data, format)
	done()
	if err != nil {
		return err
	}

	j := jobFromFlags(cmd, file.Path, filepath.Join(outDir, file.Name))
	result, _, err := a.process(ctx, cmd, &j, src, nil)
	if err != nil {
		return err
	}

	done = a.profiler.StartOperation("cli.encode")
	defer done()
	return images.SaveFile(j.output, result)
}
