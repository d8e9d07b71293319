package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-restore/config"
	"github.com/nvr-ai/go-restore/logging"
	"github.com/nvr-ai/go-restore/profiler"
)

// app carries what every subcommand needs once the root has initialized.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	profiler *profiler.RuntimeProfiler
}

// NewRoot builds the restore command tree.
func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	a := &app{cfg: config.Default(), logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:           "restore",
		Short:         "anisotropic diffusion photo restoration",
		Long:          "Denoise, inpaint and enlarge photographs with edge-preserving anisotropic diffusion.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd.OutOrStdout(), cmd, 0)
		},
	}
	cmd.AddCommand(
		NewVersionCmd(gitsha),
		NewRunCmd(ctx, a),
		NewBatchCmd(ctx, a),
		NewSettingsCmd(a),
	)
	pf := cmd.PersistentFlags()
	pf.String("config", "", "YAML configuration file")
	pf.StringSlice("env", []string{".env"}, ".env files loaded before reading RESTORE_* variables")
	pf.String("log-level", "", "Log level (debug, info, warn, error); overrides the configuration")
	pf.Int("workers", 0, "diffusion worker pool size; 0 derives it from the CPU count")
	pf.Bool("profile", false, "log periodic runtime profiling reports")
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	envFiles, _ := cmd.Flags().GetStringSlice("env")
	cfg, err := config.Load(path, envFiles...)
	if err != nil {
		return err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("profile") {
		cfg.Profile, _ = cmd.Flags().GetBool("profile")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logger = logger

	a.profiler = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{Logger: logger.Named("profiler")})
	if cfg.Profile {
		a.profiler.Start()
	}
	return nil
}

func (a *app) close() {
	if a.profiler != nil {
		a.profiler.Stop()
		if a.cfg.Profile {
			a.profiler.LogReport(a.profiler.Report())
		}
	}
	_ = a.logger.Sync()
}

func printCommandTree(w io.Writer, cmd *cobra.Command, indent int) {
	fmt.Fprintln(w, strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(w, subCmd, indent+1)
	}
}

// NewVersionCmd prints the build revision.
func NewVersionCmd(gitsha string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), gitsha)
		},
	}
}
