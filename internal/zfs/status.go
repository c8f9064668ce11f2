package zfs

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// SharedSpare is the path recorded for a spare listed under more than one pool
const SharedSpare = "*.spares"

// ErrMalformedStatus is returned when the config block indentation cannot be followed
var ErrMalformedStatus = errors.New("malformed zpool status")

var reConfigHeader = regexp.MustCompile(`^\s*NAME\s*STATE\s*READ\s*WRITE\s*CKSUM`)

// ParseStatusPaths maps each leaf device name in the config blocks of
// `zpool status` output to its dotted pool.vdev path.
//
//	tank          ONLINE
//	  mirror-0    ONLINE
//	    a1        ONLINE      -> a1: tank.mirror-0
//	spares
//	  a9          AVAIL       -> a9: tank.spares
//
// Leading tabs are dropped and every two spaces are one level. The spares
// key sits at pool level in the output but is treated as a child of the pool.
func ParseStatusPaths(status string) (map[string]string, error) {
	paths := make(map[string]string)

	inConfig := false
	var path []string

	scanner := bufio.NewScanner(strings.NewReader(status))
	lineNo := 0
	for scanner.Scan() {
		line := scanner.Text()
		lineNo++

		if !inConfig {
			if reConfigHeader.MatchString(line) {
				inConfig = true
				path = path[:0]
			}
			continue
		}

		if strings.TrimSpace(line) == "" {
			inConfig = false
			continue
		}

		line = strings.TrimLeft(line, "\t")
		trimmed := strings.TrimLeft(line, " ")
		indent := len(line) - len(trimmed)
		if indent%2 != 0 {
			return nil, fmt.Errorf("%w: line %d: odd indentation %d", ErrMalformedStatus, lineNo, indent)
		}
		depth := indent / 2

		part := strings.Fields(trimmed)[0]
		if part == "spares" || (len(path) > 1 && path[1] == "spares") {
			depth++
		}
		if depth > len(path) {
			return nil, fmt.Errorf("%w: line %d: %q is nested too deep", ErrMalformedStatus, lineNo, part)
		}
		path = append(path[:depth], part)

		if len(path) != 3 {
			continue
		}
		leaf := path[2]
		existing, seen := paths[leaf]
		switch {
		case seen && strings.HasSuffix(existing, "spares"):
			paths[leaf] = SharedSpare
		case seen:
			return nil, fmt.Errorf("%w: line %d: %s appears twice", ErrMalformedStatus, lineNo, leaf)
		default:
			paths[leaf] = path[0] + "." + path[1]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return paths, nil
}

// StripSingleDiskSuffix drops a trailing "-0" from every path, but only when
// every path has one; pools built from one disk per vdev otherwise show
// mirror-0, raidz1-0 on every row.
func StripSingleDiskSuffix(paths map[string]string) map[string]string {
	if len(paths) == 0 {
		return paths
	}
	for _, v := range paths {
		if !strings.HasSuffix(v, "-0") {
			return paths
		}
	}
	stripped := make(map[string]string, len(paths))
	for k, v := range paths {
		stripped[k] = strings.TrimSuffix(v, "-0")
	}
	return stripped
}
