package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"media-toolbox/internal/catalog"
	"media-toolbox/internal/engine"
	"media-toolbox/internal/logging"
	"media-toolbox/internal/startup"
)

// app holds the state shared by all subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Flags
	outDir     string
	ffmpegPath string
	workDir    string

	config  *startup.Config
	catalog *catalog.Catalog

	// newEngine builds the engine behind an engine-backed tool.
	newEngine func(cfg engine.FFmpegConfig) engine.Engine
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		newEngine: func(cfg engine.FFmpegConfig) engine.Engine {
			return engine.NewFFmpeg(cfg)
		},
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "media-toolbox",
		Short:         "Optimize, merge, split and convert media files locally",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.outDir, "out", "o", ".", "directory for output files")
	flags.StringVar(&a.ffmpegPath, "ffmpeg", "", "ffmpeg binary (defaults to FFMPEG_PATH or ffmpeg)")
	flags.StringVar(&a.workDir, "work-dir", "", "parent directory for engine scratch space (defaults to WORK_DIR)")

	root.AddCommand(
		newPDFOptimizeCmd(a),
		newAudioMergeCmd(a),
		newAudioSplitCmd(a),
		newImageConvertCmd(a),
		newVideoConvertCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup resolves configuration and applies flag overrides.
func (a *app) setup() error {
	logging.SetOutput(a.stderr)

	cfg, err := startup.ResolveConfig()
	if err != nil {
		return err
	}
	if a.ffmpegPath != "" {
		cfg.FFmpegPath = a.ffmpegPath
	}
	if a.workDir != "" {
		dir, err := filepath.Abs(a.workDir)
		if err != nil {
			return fmt.Errorf("failed to resolve work directory path: %w", err)
		}
		cfg.WorkDir = dir
	}

	a.config = cfg
	a.catalog = catalog.New(cfg.Limits)
	return nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// No configuration needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			info := startup.GetBuildInfo()
			fmt.Fprintf(a.stdout, "media-toolbox %s\n", info.Version)
			fmt.Fprintf(a.stdout, "  commit:     %s\n", info.Commit)
			fmt.Fprintf(a.stdout, "  built:      %s\n", info.BuildTime)
			fmt.Fprintf(a.stdout, "  go version: %s\n", info.GoVersion)
			fmt.Fprintf(a.stdout, "  platform:   %s/%s\n", info.OS, info.Arch)
			return nil
		},
	}
}
