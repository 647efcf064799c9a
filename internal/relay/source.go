package relay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/turbocompute/gpulogs/internal/constants"
	apperrors "github.com/turbocompute/gpulogs/internal/errors"
)

// StdinPath selects standard input as a source.
const StdinPath = "-"

// Source is a line-oriented input published under one target.
type Source struct {
	Target string
	Path   string
}

// ParseSource parses "[target=]path". A bare path publishes untargeted lines.
func ParseSource(spec string) (Source, error) {
	target, path, found := strings.Cut(spec, "=")
	if !found {
		target, path = AllTargets, spec
	}
	target = strings.TrimSpace(target)
	path = strings.TrimSpace(path)
	if path == "" {
		return Source{}, apperrors.ErrBadRequest(fmt.Sprintf("invalid source %q, expected [target=]path", spec), nil)
	}
	if found && target == "" {
		return Source{}, apperrors.ErrBadRequest(fmt.Sprintf("invalid source %q, target is empty", spec), nil)
	}
	return Source{Target: target, Path: path}, nil
}

// Open opens the source for reading.
func (s Source) Open() (io.ReadCloser, error) {
	if s.Path == StdinPath {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, apperrors.ErrNotFound("cannot open source "+s.Path, err)
	}
	return f, nil
}

// Pump publishes every line of r under target until EOF or ctx is done, then
// ends the target. The caller registers the target with hub.Begin first.
// Trailing carriage returns are stripped.
func Pump(ctx context.Context, hub *Hub, target string, r io.Reader) error {
	defer hub.End(target)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), constants.RelayMaxLineBytes)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		hub.Publish(target, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}
	return nil
}
