package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// DiskUsageBytes totals the regular files at or below each path. Paths that
// do not exist, or vanish during the walk, count as zero.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, root := range paths {
		if root == "" {
			continue
		}
		err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			switch {
			case errors.Is(err, fs.ErrNotExist):
				return nil
			case err != nil:
				return err
			}
			total += info.Size()
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("disk usage of %s: %w", root, err)
		}
	}
	return total, nil
}
