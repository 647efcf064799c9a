package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/turbocompute/gpulogs/internal/client/output"
	"github.com/turbocompute/gpulogs/internal/constants"
	apperrors "github.com/turbocompute/gpulogs/internal/errors"
	"github.com/turbocompute/gpulogs/internal/export"
	"github.com/turbocompute/gpulogs/internal/stream"

	"github.com/spf13/cobra"
)

var (
	logsStream    streamFlags
	logsFollow    bool
	logsFilter    string
	logsSearch    string
	logsExport    bool
	logsExportDir string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print streamed log lines to the terminal",
	Long: `Print log lines from a stream endpoint as they arrive.

Without --follow the command returns when the stream closes. With --follow it
reconnects with backoff until interrupted.`,
	Example: `  gpulogs logs --target job-42 --follow
  gpulogs logs --url wss://logs.example.com/ws/logs --search error
  gpulogs logs --follow --export --export-dir s3://my-bucket/gpu-logs`,
	Args: cobra.NoArgs,
	RunE: logsRun,
}

func init() {
	addStreamFlags(logsCmd, &logsStream)
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Keep reconnecting after the stream closes")
	logsCmd.Flags().StringVar(&logsFilter, "filter", "", "Only print lines containing this text (case-insensitive)")
	logsCmd.Flags().StringVar(&logsSearch, "search", "", "Highlight the first occurrence of this text in each line")
	logsCmd.Flags().BoolVar(&logsExport, "export", false, "Export the buffered lines on exit")
	logsCmd.Flags().StringVar(&logsExportDir, "export-dir", "",
		"Export destination directory or s3://bucket/prefix, defaults to the configured export_dir")
	rootCmd.AddCommand(logsCmd)
}

func logsRun(cmd *cobra.Command, _ []string) error {
	cfg, err := getConfigFromContext(cmd)
	if err != nil {
		output.Errorf("failed to load configuration: %v", err)
		return err
	}
	cfg, err = logsStream.merge(cmd, cfg)
	if err != nil {
		output.Errorf(err.Error())
		return err
	}
	printHeader(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := FollowOptions{
		Stream: streamOptions(cfg),
		Follow: logsFollow,
		Filter: logsFilter,
		Search: logsSearch,
	}
	if logsExport {
		dest := cfg.ExportDir
		if cmd.Flags().Changed("export-dir") {
			dest = logsExportDir
		}
		if opts.Sink, err = export.NewSink(ctx, dest); err != nil {
			output.Errorf(err.Error())
			return err
		}
	}

	if err = NewFollowService(NewOutputWrapper()).Follow(ctx, opts); err != nil {
		output.Errorf(err.Error())
		return err
	}
	return nil
}

// FollowOptions configures FollowService.Follow.
type FollowOptions struct {
	Stream stream.Options
	// Follow keeps reconnecting after the stream closes.
	Follow bool
	Filter string
	Search string
	// Sink, when set, receives the full buffer on exit.
	Sink stream.BlobSink
}

// FollowService prints every ingested line that passes the filter. Lines are
// handed over at ingestion, so buffer eviction never hides a line from it.
type FollowService struct {
	output  OutputInterface
	filter  stream.Filter
	printed int

	mu      sync.Mutex
	pending []stream.LogEntry
}

// NewFollowService creates a new FollowService with the provided dependencies.
func NewFollowService(outputter OutputInterface) *FollowService {
	return &FollowService{output: outputter}
}

// Follow streams until ctx ends or, without opts.Follow, until the stream
// disconnects. Lines are printed once each, in arrival order.
func (s *FollowService) Follow(ctx context.Context, opts FollowOptions) error {
	changed := make(chan struct{}, 1)
	s.filter = stream.Filter{FilterText: opts.Filter, SearchText: opts.Search}

	streamOpts := opts.Stream
	streamOpts.AutoScroll = false
	streamOpts.Scroller = nil
	streamOpts.OnEntry = s.enqueue
	streamOpts.OnChange = func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}

	viewer := stream.NewViewer(streamOpts)
	defer viewer.Teardown()

	s.output.Infof("Connecting to %s", s.output.Cyan(streamOpts.URL))
	viewer.Start()

	lastState := stream.ConnectionState(-1)
	for {
		select {
		case <-ctx.Done():
			s.printPending()
			s.output.Blank()
			s.output.Infof("Interrupted, closing connection...")
			return s.finish(ctx, viewer, opts.Sink)
		case <-changed:
		}

		// Read the state before draining: entries ingested ahead of it are queued.
		state := viewer.State()
		s.printPending()

		if state == lastState {
			continue
		}
		lastState = state
		s.output.Infof("Stream %s", s.output.StatusBadge(state.String()))
		if state != stream.Disconnected || opts.Follow {
			continue
		}

		if !viewer.EverConnected() {
			return apperrors.ErrServiceUnavailable(fmt.Sprintf("could not connect to %s", streamOpts.URL), nil)
		}
		return s.finish(ctx, viewer, opts.Sink)
	}
}

func (s *FollowService) enqueue(entry stream.LogEntry) {
	s.mu.Lock()
	s.pending = append(s.pending, entry)
	s.mu.Unlock()
}

// printPending prints the queued entries that pass the filter.
func (s *FollowService) printPending() {
	s.mu.Lock()
	entries := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, entry := range entries {
		if !s.filter.Matches(entry.Text) {
			continue
		}
		s.printed++
		s.output.Printf("%s %s %s\n",
			s.output.LineNumber(s.printed),
			s.output.Gray(entry.Timestamp.Local().Format(constants.DisplayTimeLayout)),
			s.highlight(s.filter.Highlight(entry.Text)),
		)
	}
}

func (s *FollowService) highlight(spans []stream.Span) string {
	var sb strings.Builder
	for _, span := range spans {
		if span.Match {
			sb.WriteString(s.output.Highlight(span.Text))
			continue
		}
		sb.WriteString(span.Text)
	}
	return sb.String()
}

func (s *FollowService) finish(ctx context.Context, viewer *stream.Viewer, sink stream.BlobSink) error {
	s.output.Infof("Printed %d lines", s.printed)
	if sink == nil {
		return nil
	}

	location, err := viewer.Export(context.WithoutCancel(ctx), sink)
	if err != nil {
		return fmt.Errorf("failed to export logs: %w", err)
	}
	s.output.Successf("Exported %d lines to %s", len(viewer.Entries()), s.output.Bold(location))
	return nil
}
