package collector

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sigreer/lsblkpro/internal/model"
)

// DefaultSysRoot is where sysfs is mounted
const DefaultSysRoot = "/sys"

var reHiddenByDefault = regexp.MustCompile(`^(?:ram\d+|loop\d+)$`)

// HiddenByDefault reports whether a device is skipped unless --all is given
func HiddenByDefault(name string) bool {
	return reHiddenByDefault.MatchString(name)
}

// WalkSysfs reads <root>/block and returns one record per device followed by
// one record per partition of that device
func WalkSysfs(root string, all bool) ([]model.SysfsRecord, error) {
	blockDir := filepath.Join(root, "block")
	entries, err := os.ReadDir(blockDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", blockDir, err)
	}

	var records []model.SysfsRecord
	for _, entry := range entries {
		name := entry.Name()
		if !all && HiddenByDefault(name) {
			continue
		}

		dev, err := walkDevice(blockDir, name)
		if err != nil {
			return nil, err
		}
		records = append(records, dev)

		for _, part := range dev.Partitions {
			p, err := walkPartition(blockDir, name, part)
			if err != nil {
				return nil, err
			}
			records = append(records, p)
		}
	}

	return records, nil
}

// IsPartitionDirent reports whether entry under <blockDir>/<device> is a
// partition: it starts with the device name and has a start attribute
func IsPartitionDirent(blockDir, device, entry string) bool {
	if !strings.HasPrefix(entry, device) {
		return false
	}
	_, err := os.Stat(filepath.Join(blockDir, device, entry, "start"))
	return err == nil
}

func walkDevice(blockDir, name string) (model.SysfsRecord, error) {
	rec := model.SysfsRecord{Name: name}
	path := filepath.Join(blockDir, name)

	entries, err := os.ReadDir(path)
	if err != nil {
		return rec, fmt.Errorf("failed to read %s: %w", path, err)
	}

	for _, entry := range entries {
		switch {
		case IsPartitionDirent(blockDir, name, entry.Name()):
			rec.Partitions = append(rec.Partitions, entry.Name())
		case entry.Name() == "holders":
			rec.Holders = readHolders(path)
		case entry.Name() == "dev":
			if rec.MajMin, err = readMajMin(path); err != nil {
				return rec, err
			}
		case entry.Name() == "size":
			if rec.SizeSectors, err = readInt(filepath.Join(path, "size")); err != nil {
				return rec, err
			}
		}
	}

	sort.Slice(rec.Partitions, func(i, j int) bool {
		return model.Less(rec.Partitions[i], rec.Partitions[j])
	})
	return rec, nil
}

func walkPartition(blockDir, device, part string) (model.SysfsRecord, error) {
	rec := model.SysfsRecord{Name: part, Parent: device}
	path := filepath.Join(blockDir, device, part)

	entries, err := os.ReadDir(path)
	if err != nil {
		return rec, fmt.Errorf("failed to read %s: %w", path, err)
	}

	for _, entry := range entries {
		switch entry.Name() {
		case "holders":
			rec.Holders = readHolders(path)
		case "dev":
			if rec.MajMin, err = readMajMin(path); err != nil {
				return rec, err
			}
		case "size":
			if rec.SizeSectors, err = readInt(filepath.Join(path, "size")); err != nil {
				return rec, err
			}
		}
	}
	return rec, nil
}

func readHolders(path string) []string {
	entries, err := os.ReadDir(filepath.Join(path, "holders"))
	if err != nil {
		return nil
	}
	var holders []string
	for _, e := range entries {
		holders = append(holders, e.Name())
	}
	return holders
}

func readMajMin(path string) (model.MajMin, error) {
	data, err := os.ReadFile(filepath.Join(path, "dev"))
	if err != nil {
		return model.MajMin{}, err
	}
	mm, err := model.ParseMajMin(strings.TrimSpace(string(data)))
	if err != nil {
		return mm, fmt.Errorf("%s/dev: %w", path, err)
	}
	return mm, nil
}

func readInt(file string) (int64, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", file, err)
	}
	return n, nil
}
