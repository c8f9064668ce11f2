package collector

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sigreer/lsblkpro/internal/model"
)

// DefaultUdevRoot is the udev database directory
const DefaultUdevRoot = "/run/udev/data"

// ReadUdevAliases reads the /dev/disk links udev recorded for each sysfs
// record from its database (b<major>:<minor> files), so aliases are known
// even where /dev/disk is not populated, e.g. a container that only mounts
// /run/udev. A missing database yields an empty result.
func ReadUdevAliases(root string, records []model.SysfsRecord) (model.AliasRecords, error) {
	aliases := make(model.AliasRecords)

	if _, err := os.Stat(root); os.IsNotExist(err) {
		return aliases, nil
	}

	for _, rec := range records {
		path := filepath.Join(root, "b"+rec.MajMin.String())
		file, err := os.Open(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		links := parseUdevLinks(file)
		file.Close()

		for _, link := range links {
			kind, name, ok := splitDiskLink(link)
			if !ok {
				continue
			}
			if aliases[kind] == nil {
				aliases[kind] = make(map[string]string)
			}
			aliases[kind][name] = rec.Name
		}
	}
	return aliases, nil
}

// parseUdevLinks collects the S: symlink lines and the E:DEVLINKS variable
// of one database entry, relative to /dev
func parseUdevLinks(r io.Reader) []string {
	seen := make(map[string]bool)
	var links []string
	add := func(link string) {
		link = strings.TrimPrefix(link, "/dev/")
		if link != "" && !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "S:"):
			add(strings.TrimPrefix(line, "S:"))
		case strings.HasPrefix(line, "E:DEVLINKS="):
			for _, l := range strings.Fields(strings.TrimPrefix(line, "E:DEVLINKS=")) {
				add(l)
			}
		}
	}
	return links
}

// splitDiskLink turns "disk/by-id/ata-X" into ("by-id", "ata-X")
func splitDiskLink(link string) (kind, name string, ok bool) {
	parts := strings.Split(link, "/")
	if len(parts) != 3 || parts[0] != "disk" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// mergeMissingKinds adds the udev alias kinds /dev/disk did not have
func mergeMissingKinds(aliases, udev model.AliasRecords) []string {
	var added []string
	for kind, links := range udev {
		if _, ok := aliases[kind]; ok {
			continue
		}
		aliases[kind] = links
		added = append(added, kind)
	}
	return added
}
