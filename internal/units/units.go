// Package units formats and parses byte sizes the way lsblk prints them.
package units

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// ShortSize formats a byte count in lsblk's compact binary style: 3.6T, 512M, 0B
func ShortSize(bytes int64) string {
	if bytes < 0 {
		return ""
	}
	s := humanize.IBytes(uint64(bytes)) // "3.6 TiB", "512 B"
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSuffix(s, "iB")
	return s
}

// ParseSize accepts a plain byte count ("4000000000") or a magnitude with a
// unit ("4GB", "4GiB", "4G")
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n), nil
}
