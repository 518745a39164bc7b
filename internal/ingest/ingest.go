// Package ingest accepts uploaded files and turns them into plain text
// for the chat context.
package ingest

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fakmal/chatdelon/internal/apperr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// allowedExtensions is the upload allow-list. Anything else is rejected
// before a single byte is written.
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".pdf":  true,
	".docx": true,
	".txt":  true,
	".md":   true,
	".csv":  true,
	".log":  true,
}

type Ingestor struct {
	dir    string
	logger *zap.Logger
}

// New creates the upload directory if needed.
func New(dir string, logger *zap.Logger) (*Ingestor, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to create upload directory %s", dir)
	}
	return &Ingestor{dir: dir, logger: logger}, nil
}

// Dir returns the upload directory.
func (in *Ingestor) Dir() string { return in.dir }

// Save writes the upload under a collision-proof name and returns the
// stored name and path. Empty filenames and disallowed extensions are
// rejected with a validation error and nothing is written.
func (in *Ingestor) Save(filename string, r io.Reader) (string, string, error) {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", "", apperr.New(apperr.KindValidation, "no file selected")
	}
	ext := strings.ToLower(filepath.Ext(base))
	if !allowedExtensions[ext] {
		return "", "", apperr.New(apperr.KindValidation, "file type %q not allowed", ext)
	}

	storedName := uuid.NewString()[:8] + "_" + base
	storedPath := filepath.Join(in.dir, storedName)

	f, err := os.Create(storedPath)
	if err != nil {
		return "", "", apperr.Wrap(apperr.KindStorage, err, "failed to store upload %s", base)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(storedPath)
		return "", "", apperr.Wrap(apperr.KindStorage, err, "failed to store upload %s", base)
	}
	if err := f.Close(); err != nil {
		os.Remove(storedPath)
		return "", "", apperr.Wrap(apperr.KindStorage, err, "failed to store upload %s", base)
	}

	in.logger.Info("stored upload",
		zap.String("filename", base),
		zap.String("storedPath", storedPath))
	return storedName, storedPath, nil
}
