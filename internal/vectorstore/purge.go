package vectorstore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"docsearch/internal/domain"
)

// Purge deletes every regular file directly under root and returns how many
// were removed. The root directory itself is kept so ingest can write into
// it again. Nothing is touched unless confirmed is true.
func Purge(root string, confirmed bool) (int, error) {
	if !confirmed {
		return 0, domain.ErrNotConfirmed
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, persistErr("list", root, err)
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		p := filepath.Join(root, e.Name())
		if err := os.Remove(p); err != nil {
			errs = append(errs, persistErr("remove", p, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
