package collector

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/sigreer/lsblkpro/internal/model"
)

var (
	rePair   = regexp.MustCompile(`([^\s=]+)="([^"]*)"`)
	reEscape = regexp.MustCompile(`\\x([0-9a-fA-F]{2})`)
)

// RunLsblk runs lsblk -P -O and parses every line into a record
func RunLsblk(ctx context.Context, path string, all bool) ([]model.LsblkRecord, error) {
	if path == "" {
		path = "lsblk"
	}
	args := []string{}
	if all {
		args = append(args, "--all")
	}
	args = append(args, "-P", "-O")

	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("lsblk failed: %w", err)
	}
	return ParseLsblkPairs(out)
}

// ParseLsblkPairs parses lsblk --pairs output, one KEY="VALUE" record per line.
// lsblk hex-escapes unsafe bytes (\x20, \x22) which are decoded here.
func ParseLsblkPairs(out []byte) ([]model.LsblkRecord, error) {
	var records []model.LsblkRecord

	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		rec := make(model.LsblkRecord)
		for _, m := range rePair.FindAllStringSubmatch(line, -1) {
			rec[m[1]] = unescape(m[2])
		}
		if rec["NAME"] == "" || rec["MAJ:MIN"] == "" {
			return nil, fmt.Errorf("lsblk line %d: missing NAME or MAJ:MIN", lineNo)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func unescape(s string) string {
	return reEscape.ReplaceAllStringFunc(s, func(esc string) string {
		b, err := strconv.ParseUint(esc[2:], 16, 8)
		if err != nil {
			return esc
		}
		return string([]byte{byte(b)})
	})
}
