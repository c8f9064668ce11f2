package collector

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigreer/lsblkpro/internal/model"
)

// DefaultDevRoot is where device nodes live
const DefaultDevRoot = "/dev"

// ReadDiskAliases reads every <root>/disk/<kind> directory (by-id, by-uuid,
// by-vdev, ...) and maps symlink basename to the kernel name it points at.
// A missing /dev/disk yields an empty result.
func ReadDiskAliases(root string) (model.AliasRecords, error) {
	aliases := make(model.AliasRecords)

	diskDir := filepath.Join(root, "disk")
	kinds, err := os.ReadDir(diskDir)
	if os.IsNotExist(err) {
		return aliases, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", diskDir, err)
	}

	for _, kind := range kinds {
		if !kind.IsDir() {
			continue
		}
		links, err := readSymlinks(filepath.Join(diskDir, kind.Name()))
		if err != nil {
			return nil, err
		}
		if len(links) > 0 {
			aliases[kind.Name()] = links
		}
	}
	return aliases, nil
}

// readSymlinks returns link name -> basename of the link target
func readSymlinks(dir string) (map[string]string, error) {
	result := make(map[string]string)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		result[entry.Name()] = filepath.Base(target)
	}
	return result, nil
}
