package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/turbocompute/gpulogs/internal/client/output"
	"github.com/turbocompute/gpulogs/internal/config"
	"github.com/turbocompute/gpulogs/internal/constants"
	apperrors "github.com/turbocompute/gpulogs/internal/errors"
	"github.com/turbocompute/gpulogs/internal/export"
	"github.com/turbocompute/gpulogs/internal/logger"
	"github.com/turbocompute/gpulogs/internal/tui"

	"github.com/spf13/cobra"
)

var (
	tailStream       streamFlags
	tailNoAutoScroll bool
	tailLogFile      string
	tailTheme        string
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Open the interactive live log viewer",
	Long: `Open a full-screen viewer on a stream endpoint.

Keys: p pause/resume, c clear, s export, r reconnect, a auto-scroll,
f filter, / search, g/G top/bottom, q quit.`,
	Example: `  gpulogs tail --target job-42
  gpulogs tail --lite --url ws://10.0.0.5:8000/ws/logs`,
	Args: cobra.NoArgs,
	RunE: tailRun,
}

func init() {
	addStreamFlags(tailCmd, &tailStream)
	tailCmd.Flags().BoolVar(&tailNoAutoScroll, "no-auto-scroll", false, "Start with auto-scroll disabled")
	tailCmd.Flags().StringVar(&tailLogFile, "log-file", "", "Write diagnostic logs to this file")
	tailCmd.Flags().StringVar(&tailTheme, "theme", "", "Theme file, defaults to ~/.gpulogs/theme.toml")
	rootCmd.AddCommand(tailCmd)
}

func tailRun(cmd *cobra.Command, _ []string) error {
	cfg, err := getConfigFromContext(cmd)
	if err != nil {
		output.Errorf("failed to load configuration: %v", err)
		return err
	}
	cfg, err = tailStream.merge(cmd, cfg)
	if err != nil {
		output.Errorf(err.Error())
		return err
	}
	if tailNoAutoScroll {
		cfg.AutoScroll = false
	}

	themePath := tailTheme
	if themePath == "" {
		if themePath, err = config.GetThemePath(); err != nil {
			output.Warningf("theme disabled: %v", err)
		}
	}
	theme, err := tui.LoadTheme(themePath)
	if err != nil {
		output.Warningf("using the default theme: %s", apperrors.GetErrorDetails(err))
	}

	sink, err := export.NewSink(cmd.Context(), cfg.ExportDir)
	if err != nil {
		output.Warningf("export disabled: %v", err)
	}

	log, closeLog, err := tailLogger(cfg)
	if err != nil {
		output.Errorf(err.Error())
		return err
	}
	defer closeLog()

	opts := streamOptions(cfg)
	opts.Logger = log
	return tui.Run(cmd.Context(), tui.Options{
		Stream: opts,
		Sink:   sink,
		Theme:  theme,
	})
}

// tailLogger keeps diagnostics off the terminal the viewer draws on.
func tailLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if tailLogFile == "" {
		return logger.New(io.Discard, constants.CLI, logLevel(cfg)), func() {}, nil
	}

	f, err := os.OpenFile(tailLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, constants.ConfigFilePermissions)
	if err != nil {
		return nil, nil, err
	}
	return logger.New(f, constants.CLI, logLevel(cfg)), func() { _ = f.Close() }, nil
}
