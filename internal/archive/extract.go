// Package archive expands compressed trace files so they can be replayed
// like plain ones.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/msgtrace/tracecheck/internal/models"
)

var errNotGzip = errors.New("not a gzip file")

// Extractor decompresses archives into a scratch directory.
type Extractor struct {
	tempDir string
	logger  zerolog.Logger
}

// Extracted is a decompressed copy of an archive. Remove must be called once
// the copy has been parsed; the original archive is never touched.
type Extracted struct {
	Path    string
	Size    int64
	Archive string
}

func NewExtractor(tempDir string, logger zerolog.Logger) *Extractor {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Extractor{tempDir: tempDir, logger: logger}
}

// Extract stream-decompresses the gzip file at path into a uniquely named
// temp file.
func (x *Extractor) Extract(path string) (*Extracted, error) {
	compressedFile, err := os.Open(path)
	if err != nil {
		return nil, models.NewIOError(path, "opening archive", err)
	}
	defer compressedFile.Close()

	// Check gzip magic
	magic := make([]byte, 2)
	if _, err := io.ReadFull(compressedFile, magic); err != nil {
		return nil, models.NewIOError(path, "reading archive header", err)
	}
	if magic[0] != 0x1f || magic[1] != 0x8b {
		return nil, models.NewIOError(path, "reading archive header", errNotGzip)
	}
	if _, err := compressedFile.Seek(0, io.SeekStart); err != nil {
		return nil, models.NewIOError(path, "rewinding archive", err)
	}

	reader, err := gzip.NewReader(compressedFile)
	if err != nil {
		return nil, models.NewIOError(path, "opening gzip stream", err)
	}
	defer reader.Close()

	tempPath := filepath.Join(x.tempDir, fmt.Sprintf("tracecheck-%s-%s", uuid.NewString(), filepath.Base(path)))
	outFile, err := os.Create(tempPath)
	if err != nil {
		return nil, models.NewIOError(tempPath, "creating extraction file", err)
	}

	buf := make([]byte, 1024*1024) // 1MB buffer
	var written int64
	lastProgressUpdate := time.Now()

	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			if _, writeErr := outFile.Write(buf[:n]); writeErr != nil {
				outFile.Close()
				os.Remove(tempPath)
				return nil, models.NewIOError(tempPath, "writing extraction file", writeErr)
			}
			written += int64(n)

			if time.Since(lastProgressUpdate) > time.Second {
				x.logger.Debug().
					Str("archive", filepath.Base(path)).
					Str("written", humanize.Bytes(uint64(written))).
					Msg("decompressing")
				lastProgressUpdate = time.Now()
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				outFile.Close()
				os.Remove(tempPath)
				return nil, models.NewIOError(path, "decompressing archive", readErr)
			}
			break
		}
	}

	if err := outFile.Close(); err != nil {
		os.Remove(tempPath)
		return nil, models.NewIOError(tempPath, "closing extraction file", err)
	}

	x.logger.Debug().
		Str("archive", filepath.Base(path)).
		Str("size", humanize.Bytes(uint64(written))).
		Msg("archive extracted")

	return &Extracted{Path: tempPath, Size: written, Archive: path}, nil
}

// Remove deletes the decompressed copy.
func (e *Extracted) Remove() error {
	if err := os.Remove(e.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return models.NewIOError(e.Path, "removing extraction file", err)
	}
	return nil
}
