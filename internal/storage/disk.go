package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// sqliteSidecars are the files SQLite keeps next to a database in WAL mode.
var sqliteSidecars = []string{"-wal", "-shm"}

// Artifact is one on-disk component of the engine. Database artifacts also count their
// SQLite sidecar files.
type Artifact struct {
	Name     string
	Path     string
	Database bool
}

// DiskUsage reports the size in bytes of each artifact by name, plus the total.
// Directories are summed recursively. Empty and missing paths count as 0.
func DiskUsage(artifacts ...Artifact) (map[string]int64, int64, error) {
	usage := make(map[string]int64, len(artifacts))
	var total int64
	for _, a := range artifacts {
		paths := []string{a.Path}
		if a.Database && a.Path != "" {
			for _, suffix := range sqliteSidecars {
				paths = append(paths, a.Path+suffix)
			}
		}
		var n int64
		for _, p := range paths {
			size, err := pathSize(p)
			if err != nil {
				return nil, 0, err
			}
			n += size
		}
		usage[a.Name] += n
		total += n
	}
	return usage, total, nil
}

func pathSize(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
