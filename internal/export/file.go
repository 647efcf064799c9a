package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/turbocompute/gpulogs/internal/constants"
	apperrors "github.com/turbocompute/gpulogs/internal/errors"
)

// FileSink writes exports into a local directory.
type FileSink struct {
	dir string
}

// NewFileSink creates a sink writing into dir; an empty dir means the working directory.
func NewFileSink(dir string) *FileSink {
	if dir == "" {
		dir = constants.DefaultExportDir
	}
	return &FileSink{dir: dir}
}

// Save writes data to dir/name and returns the file path.
func (s *FileSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, constants.ConfigDirPermissions); err != nil {
		return "", fileError(s.dir, err)
	}

	path := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, constants.ExportFilePermissions); err != nil {
		return "", fileError(path, err)
	}
	return path, nil
}

func fileError(path string, err error) error {
	if errors.Is(err, os.ErrPermission) {
		return apperrors.ErrExportDenied(
			fmt.Sprintf("cannot write %s: permission denied, choose another export directory", path), err)
	}
	return apperrors.ErrInternalError("failed to write export file "+path, err)
}
