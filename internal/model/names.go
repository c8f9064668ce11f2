package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// knownPrefixes is the block device name vocabulary from the kernel's
// devices.txt, longest first so "mmcblk" wins over "md"
var knownPrefixes = []string{
	"bcache", "mmcblk",
	"nvme", "loop", "zram", "drbd", "pmem", "ublk",
	"dm-", "xvd", "nbd", "rbd", "ram",
	"sd", "hd", "vd", "md", "zd", "sr", "fd",
}

var (
	reGenericPrefix = regexp.MustCompile(`^[a-z]{2}-?`)
	reNameRuns      = regexp.MustCompile(`[a-z]+|\d+`)
)

// NamePart is one token of a split device name
type NamePart struct {
	Text  string
	Num   int
	IsNum bool
}

func (p NamePart) String() string {
	return p.Text
}

// SplitName splits a kernel device name into its prefix followed by
// alternating alphabetic and numeric runs: nvme0n1p2 -> nvme 0 n 1 p 2
func SplitName(name string) ([]NamePart, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrNameParse)
	}

	prefix := ""
	for _, p := range knownPrefixes {
		if strings.HasPrefix(name, p) {
			prefix = p
			break
		}
	}
	if prefix == "" {
		prefix = reGenericPrefix.FindString(name)
	}

	var parts []NamePart
	if prefix != "" {
		parts = append(parts, NamePart{Text: prefix})
	}
	for _, run := range reNameRuns.FindAllString(name[len(prefix):], -1) {
		part := NamePart{Text: run}
		if n, err := strconv.Atoi(run); err == nil {
			part.Num = n
			part.IsNum = true
		}
		parts = append(parts, part)
	}

	if JoinName(parts) != name {
		return nil, fmt.Errorf("%w: %q", ErrNameParse, name)
	}
	return parts, nil
}

// JoinName is the inverse of SplitName
func JoinName(parts []NamePart) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// LettersToIndex decodes spreadsheet column letters: a -> 0, z -> 25, aa -> 26
func LettersToIndex(letters string) (int, error) {
	num := 0
	for _, r := range strings.ToLower(letters) {
		if r < 'a' || r > 'z' {
			return 0, fmt.Errorf("%w: %q is not a drive letter suffix", ErrNameParse, letters)
		}
		num = num*26 + int(r-'a') + 1
	}
	return num - 1, nil
}

// SortKey is the comparable form of a device name
type SortKey []NamePart

// NewSortKey splits name and decodes the drive-letter run that follows the
// prefix (sda, sdz, sdaa) into its numeric position
func NewSortKey(name string) (SortKey, error) {
	parts, err := SplitName(name)
	if err != nil {
		return nil, err
	}
	if len(parts) > 1 && !parts[1].IsNum {
		n, err := LettersToIndex(parts[1].Text)
		if err != nil {
			return nil, err
		}
		parts[1].Num = n
		parts[1].IsNum = true
	}
	return SortKey(parts), nil
}

// Compare returns -1, 0 or 1. Numeric tokens sort before alphabetic ones at
// the same position and a shorter key sorts first when it is a prefix.
func (k SortKey) Compare(o SortKey) int {
	for i := 0; i < len(k) && i < len(o); i++ {
		a, b := k[i], o[i]
		switch {
		case a.IsNum && b.IsNum:
			if a.Num != b.Num {
				return cmpInt(a.Num, b.Num)
			}
		case a.IsNum != b.IsNum:
			if a.IsNum {
				return -1
			}
			return 1
		default:
			if c := strings.Compare(a.Text, b.Text); c != 0 {
				return c
			}
		}
	}
	return cmpInt(len(k), len(o))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// CompareNames orders two device names in smart order. Names that cannot be
// split sort after every parseable name, lexically among themselves. Host
// names never reach that branch: Host.Validate rejects them with
// ErrNameParse, and callers sorting other names use NewSortKey directly.
func CompareNames(a, b string) int {
	ka, errA := NewSortKey(a)
	kb, errB := NewSortKey(b)
	switch {
	case errA == nil && errB == nil:
		if c := ka.Compare(kb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// Less reports whether a sorts before b in smart order
func Less(a, b string) bool {
	return CompareNames(a, b) < 0
}
