package inbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

const (
	metaKeyTitle       = "title"
	metaKeySourcePath  = "source_path"
	metaKeySourceMtime = "source_mtime"
	metaKeySourceSize  = "source_size"
)

// DocID returns the stable document id for a file. The same cleaned absolute path always
// yields the same id, so editing a file re-ingests the same document.
func DocID(absolutePath string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(absolutePath)))
	return "file:" + hex.EncodeToString(hash[:16])
}

// IngestFile reads path and ingests it. Files already ingested with the same mtime and
// size are skipped; the boolean reports whether the sink was called.
func (in *Inbox) IngestFile(ctx context.Context, path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("absolute path: %w", err)
	}
	if !matchExtension(abs, in.extensions) {
		return false, fmt.Errorf("extension of %s not accepted", abs)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("not a regular file: %s", abs)
	}
	docID := DocID(abs)
	if in.unchanged(ctx, abs, docID, info) {
		in.logger.Debug("inbox skipping unchanged file", zap.String("path", abs))
		return false, nil
	}
	text, err := ReadText(abs)
	if err != nil {
		return false, err
	}
	metadata := map[string]interface{}{
		metaKeyTitle:       filepath.Base(abs),
		metaKeySourcePath:  abs,
		metaKeySourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
		metaKeySourceSize:  strconv.FormatInt(info.Size(), 10),
	}
	res, err := in.sink.Ingest(ctx, docID, text, metadata)
	if err != nil {
		return false, err
	}
	in.logger.Debug("inbox file ingested",
		zap.String("path", abs),
		zap.String("doc_id", docID),
		zap.Uint64("cluster_id", res.ClusterID))
	return true, nil
}

// unchanged reports whether docID is stored with the file's current mtime and size.
func (in *Inbox) unchanged(ctx context.Context, abs, docID string, info os.FileInfo) bool {
	doc, err := in.sink.Document(ctx, docID)
	if err != nil || doc.Metadata == nil {
		return false
	}
	if doc.Metadata[metaKeySourcePath] != abs {
		return false
	}
	// Stored as strings: UnixNano does not survive a JSON float64 round trip.
	return metadataInt64(doc.Metadata, metaKeySourceMtime) == info.ModTime().UnixNano() &&
		metadataInt64(doc.Metadata, metaKeySourceSize) == info.Size()
}

func metadataInt64(m map[string]interface{}, key string) int64 {
	switch n := m[key].(type) {
	case string:
		x, _ := strconv.ParseInt(n, 10, 64)
		return x
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// IngestDirectory walks dir (recursively when the inbox is recursive) and ingests every
// accepted file. It returns the number of files sent to the sink and the first error.
func (in *Inbox) IngestDirectory(ctx context.Context, dir string) (int, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	var (
		n        int
		firstErr error
	)
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != abs && !in.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !matchExtension(path, in.extensions) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		ingested, err := in.IngestFile(ctx, path)
		if err != nil {
			in.logger.Warn("inbox ingest failed", zap.String("path", path), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			return nil
		}
		if ingested {
			n++
		}
		return nil
	})
	if err != nil {
		return n, err
	}
	return n, firstErr
}

// RemoveFile removes the document derived from path. A file that was never ingested is
// not an error.
func (in *Inbox) RemoveFile(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := in.sink.Remove(ctx, DocID(abs)); err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	in.logger.Debug("inbox file removed", zap.String("path", abs))
	return nil
}
