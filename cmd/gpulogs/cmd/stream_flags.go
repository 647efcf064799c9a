package cmd

import (
	"github.com/turbocompute/gpulogs/internal/config"
	"github.com/turbocompute/gpulogs/internal/constants"
	"github.com/turbocompute/gpulogs/internal/stream"

	"github.com/spf13/cobra"
)

// streamFlags are the viewer flags shared by tail and logs. Flags that were
// set on the command line override the loaded configuration.
type streamFlags struct {
	url      string
	target   string
	token    string
	maxLines int
	lite     bool
}

func addStreamFlags(cmd *cobra.Command, f *streamFlags) {
	cmd.Flags().StringVar(&f.url, "url", "", "Stream endpoint (ws:// or wss://), defaults to the configured url")
	cmd.Flags().StringVarP(&f.target, "target", "t", "", "Instance or job identifier to subscribe to")
	cmd.Flags().StringVar(&f.token, "token", "", "Auth token sent as the token query parameter")
	cmd.Flags().IntVar(&f.maxLines, "max-lines", constants.DefaultMaxLines, "Number of lines kept in memory")
	cmd.Flags().BoolVar(&f.lite, "lite", false, "Lightweight viewer keeping the last 200 lines")
	cmd.MarkFlagsMutuallyExclusive("lite", "max-lines")
}

// merge returns a copy of cfg with the changed flags applied, validated.
func (f *streamFlags) merge(cmd *cobra.Command, cfg *config.Config) (*config.Config, error) {
	merged := *cfg
	flags := cmd.Flags()
	if flags.Changed("url") {
		merged.URL = f.url
	}
	if flags.Changed("target") {
		merged.TargetID = f.target
	}
	if flags.Changed("token") {
		merged.Token = f.token
	}
	if flags.Changed("max-lines") {
		merged.MaxLines = f.maxLines
	}
	if f.lite {
		merged.MaxLines = constants.LiteMaxLines
	}

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

func streamOptions(cfg *config.Config) stream.Options {
	return stream.Options{
		URL:        cfg.URL,
		TargetID:   cfg.TargetID,
		Token:      cfg.Token,
		MaxLines:   cfg.MaxLines,
		AutoScroll: cfg.AutoScroll,
	}
}
