package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-restore/images"
	"github.com/nvr-ai/go-restore/restoration"
)

// job is one image run as requested on the command line.
type job struct {
	input  string
	output string
	mode   restoration.Mode
	preset string
	// settingsPath is an optional settings text file.
	settingsPath string
	iterations   int
	remember     bool
	preview      uint
}

// NewRunCmd restores a single image.
func NewRunCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <input> <output>",
		Short: "restore, inpaint or resize one image",
		Long: "Runs the restoration engine on one image. The mode selects denoising " +
			"(restore), inpainting of the black areas of --mask (inpaint), reconstruction " +
			"resize (resize) or plain geometric resize (simple-resize).",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runJob(ctx, cmd, jobFromFlags(cmd, args[0], args[1]))
		},
	}
	addJobFlags(cmd)
	cmd.Flags().String("mask", "", "inpainting mask image; black pixels are synthesized")
	cmd.Flags().Uint("preview", 0, "also write a preview no larger than this many pixels per side")
	return cmd
}

func addJobFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("mode", "m", "restore", "restore, inpaint, resize or simple-resize")
	f.Int("width", 0, "target width for the resize modes")
	f.Int("height", 0, "target height for the resize modes")
	f.String("size", "", "target size for the resize modes: WxH or a name such as 1080p")
	f.Float64("scale", 0, "target scale factor for the resize modes")
	f.String("preset", "", "settings preset (restoration, inpainting, resize); derived from the mode by default")
	f.String("settings", "", "settings text file overriding the preset")
	f.Int("iterations", -1, "number of diffusion passes; negative keeps the settings value")
	f.Bool("remember", false, "store the settings used as the preset's remembered values")
}

// targetSize works out the resize target from --width/--height, --size or --scale.
func targetSize(cmd *cobra.Command, src images.Size) (images.Size, error) {
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	sizeExpr, _ := cmd.Flags().GetString("size")
	scale, _ := cmd.Flags().GetFloat64("scale")

	switch {
	case sizeExpr != "":
		return images.ParseSize(sizeExpr)
	case scale > 0:
		return src.Scale(scale), nil
	case width > 0 && height > 0:
		return images.Size{Width: width, Height: height}, nil
	case width > 0:
		return images.Size{Width: width, Height: max(1, src.Height*width/src.Width)}, nil
	case height > 0:
		return images.Size{Width: max(1, src.Width*height/src.Height), Height: height}, nil
	default:
		return images.Size{}, errors.New("a resize mode needs --width/--height, --size or --scale")
	}
}

func jobFromFlags(cmd *cobra.Command, input, output string) job {
	j := job{input: input, output: output}
	j.preset, _ = cmd.Flags().GetString("preset")
	j.settingsPath, _ = cmd.Flags().GetString("settings")
	j.iterations, _ = cmd.Flags().GetInt("iterations")
	j.remember, _ = cmd.Flags().GetBool("remember")
	if cmd.Flags().Lookup("preview") != nil {
		j.preview, _ = cmd.Flags().GetUint("preview")
	}
	return j
}

// buildMode parses the mode flag once the source dimensions are known.
func buildMode(cmd *cobra.Command, src *images.Image, mask *images.Image) (restoration.Mode, error) {
	name, _ := cmd.Flags().GetString("mode")
	name = strings.ToLower(name)

	var target images.Size
	if name == "resize" || strings.HasPrefix(name, "simple") {
		var err error
		if target, err = targetSize(cmd, src.Size()); err != nil {
			return nil, err
		}
	}
	return restoration.ParseMode(name, target.Width, target.Height, mask)
}

func (a *app) runJob(ctx context.Context, cmd *cobra.Command, j job) error {
	done := a.profiler.StartOperation("cli.decode")
	src, err := images.LoadFile(j.input)
	done()
	if err != nil {
		return err
	}

	var mask *images.Image
	if maskPath, _ := cmd.Flags().GetString("mask"); maskPath != "" {
		if mask, err = images.LoadFile(maskPath); err != nil {
			return errors.Wrap(err, "failed to load mask")
		}
	}

	result, settings, err := a.process(ctx, cmd, &j, src, mask)
	if err != nil {
		return err
	}

	done = a.profiler.StartOperation("cli.encode")
	err = images.SaveFile(j.output, result)
	done()
	if err != nil {
		return err
	}

	if j.preview > 0 {
		ext := filepath.Ext(j.output)
		previewPath := strings.TrimSuffix(j.output, ext) + ".preview" + ext
		if err := images.SaveFile(previewPath, images.Thumbnail(result, j.preview, j.preview)); err != nil {
			return errors.Wrap(err, "failed to write preview")
		}
	}
	if j.remember {
		if err := a.remember(j.preset, settings); err != nil {
			return err
		}
	}
	return nil
}

// process resolves the mode and settings of j for src and runs one engine.
func (a *app) process(
	ctx context.Context,
	cmd *cobra.Command,
	j *job,
	src, mask *images.Image,
) (*images.Image, restoration.Settings, error) {
	runID := uuid.New()
	log := a.logger.With(zap.String("run_id", runID.String()), zap.String("input", j.input))

	var err error
	if j.mode, err = buildMode(cmd, src, mask); err != nil {
		return nil, restoration.Settings{}, err
	}
	j.preset = presetFor(j.mode, j.preset, a.cfg.DefaultPreset)

	settings, err := a.resolveSettings(j.preset, j.settingsPath)
	if err != nil {
		return nil, settings, err
	}
	if j.iterations >= 0 {
		settings.Iterations = uint(j.iterations)
	}

	bar := newProgressBar(cmd.ErrOrStderr(), fmt.Sprintf("%s %s", runID.String()[:8], filepath.Base(j.input)))
	engine := restoration.NewEngine(src, settings, j.mode,
		restoration.WithSink(bar),
		restoration.WithLogger(log),
		restoration.WithRecorder(a.profiler),
		restoration.WithWorkers(a.cfg.Workers),
		restoration.WithPollInterval(a.cfg.PollInterval),
	)
	log.Info("run started",
		zap.Stringer("mode", j.mode),
		zap.String("preset", j.preset),
		zap.Int("workers", engine.Workers()),
	)

	result, err := engine.Run(ctx)
	if errors.Is(err, restoration.ErrCancelled) {
		bar.cancelled()
	}
	if err != nil {
		return nil, settings, err
	}
	log.Info("run finished", zap.String("output", j.output))
	return result, settings, nil
}
