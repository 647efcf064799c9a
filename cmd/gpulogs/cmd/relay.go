package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/turbocompute/gpulogs/internal/client/output"
	"github.com/turbocompute/gpulogs/internal/constants"
	apperrors "github.com/turbocompute/gpulogs/internal/errors"
	"github.com/turbocompute/gpulogs/internal/logger"
	"github.com/turbocompute/gpulogs/internal/relay"

	"github.com/spf13/cobra"
)

var (
	relaySources  []string
	relayListen   string
	relayReplay   int
	relayJSONLogs bool
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Serve log lines from files or stdin over websocket",
	Long: `Run a local relay serving /ws/logs and /ws/logs/{targetID}.

Each --source is [target=]path; "-" reads stdin. Lines are sent to viewers as
{"line": "..."} frames. Viewers subscribed to a target get a normal close frame
when its sources end.`,
	Example: `  nvidia-smi dmon | gpulogs relay
  gpulogs relay --source job-1=/var/log/job1.log --source job-2=/var/log/job2.log`,
	Args: cobra.NoArgs,
	RunE: relayRun,
}

func init() {
	relayCmd.Flags().StringArrayVarP(&relaySources, "source", "s", []string{relay.StdinPath},
		"Line source as [target=]path, repeatable; - reads stdin")
	relayCmd.Flags().StringVar(&relayListen, "listen", "", "Listen address, defaults to the configured relay_listen")
	relayCmd.Flags().IntVar(&relayReplay, "replay", constants.DefaultRelayReplay,
		"Recent lines replayed to new viewers per target")
	relayCmd.Flags().BoolVar(&relayJSONLogs, "json-logs", false, "Emit JSON logs instead of coloured text")
	rootCmd.AddCommand(relayCmd)
}

func relayRun(cmd *cobra.Command, _ []string) error {
	cfg, err := getConfigFromContext(cmd)
	if err != nil {
		output.Errorf("failed to load configuration: %v", err)
		return err
	}
	printHeader(cmd)

	listen := cfg.RelayListen
	if cmd.Flags().Changed("listen") {
		listen = relayListen
	}
	replay := cfg.RelayReplay
	if cmd.Flags().Changed("replay") {
		replay = relayReplay
	}
	if replay < 0 {
		err = apperrors.ErrInvalidConfig("replay must not be negative", nil)
		output.Errorf(err.Error())
		return err
	}

	sources, err := parseSources(relaySources)
	if err != nil {
		output.Errorf(err.Error())
		return err
	}

	env := constants.CLI
	if relayJSONLogs {
		env = constants.Production
	}
	log := logger.Initialize(env, logLevel(cfg))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		output.Errorf("failed to listen on %s: %v", listen, err)
		return err
	}

	return NewRelayService(NewOutputWrapper(), log).Run(ctx, ln, sources, replay)
}

// parseSources parses every --source value. Stdin may appear once.
func parseSources(specs []string) ([]relay.Source, error) {
	sources := make([]relay.Source, 0, len(specs))
	stdin := 0
	for _, spec := range specs {
		src, err := relay.ParseSource(spec)
		if err != nil {
			return nil, err
		}
		if src.Path == relay.StdinPath {
			stdin++
		}
		sources = append(sources, src)
	}
	if stdin > 1 {
		return nil, apperrors.ErrBadRequest("stdin can only be used by one source", nil)
	}
	return sources, nil
}

// RelayService wires sources, hub and server together.
type RelayService struct {
	output OutputInterface
	logger *slog.Logger
	open   func(relay.Source) (io.ReadCloser, error)
}

// NewRelayService creates a new RelayService with the provided dependencies.
func NewRelayService(outputter OutputInterface, log *slog.Logger) *RelayService {
	return &RelayService{
		output: outputter,
		logger: log,
		open:   relay.Source.Open,
	}
}

// Run opens every source, then serves on ln until ctx is cancelled. Sources
// are pumped in the background; a source that ends closes its viewers but
// keeps the relay running.
func (s *RelayService) Run(ctx context.Context, ln net.Listener, sources []relay.Source, replay int) error {
	readers := make([]io.ReadCloser, 0, len(sources))
	for _, src := range sources {
		r, err := s.open(src)
		if err != nil {
			for _, opened := range readers {
				_ = opened.Close()
			}
			_ = ln.Close()
			s.output.Errorf(err.Error())
			return err
		}
		readers = append(readers, r)
	}

	hub := relay.NewHub(replay, s.logger)
	for i, src := range sources {
		hub.Begin(src.Target)
		go s.pump(ctx, hub, src, readers[i])
	}

	s.output.Successf("Relay listening on %s", s.output.Bold(ln.Addr().String()))
	rows := make([][]string, 0, len(sources))
	for _, src := range sources {
		rows = append(rows, []string{describeTarget(src.Target), src.Path})
	}
	s.output.Table([]string{"Target", "Source"}, rows)

	err := relay.NewServer(hub, s.logger).Serve(ctx, ln)
	_, lines := hub.Stats()
	s.output.Infof("Relay stopped after %d lines", lines)
	if err != nil {
		return fmt.Errorf("relay server failed: %w", err)
	}
	return nil
}

func (s *RelayService) pump(ctx context.Context, hub *relay.Hub, src relay.Source, r io.ReadCloser) {
	defer func() { _ = r.Close() }()
	if err := relay.Pump(ctx, hub, src.Target, r); err != nil {
		s.logger.Error("source failed", "path", src.Path, "target", src.Target, "error", err)
		return
	}
	s.logger.Info("source ended", "path", src.Path, "target", src.Target)
}

func describeTarget(target string) string {
	if target == relay.AllTargets {
		return "(untargeted)"
	}
	return target
}
