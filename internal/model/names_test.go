package model

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitNameRoundTrip(t *testing.T) {
	names := []string{
		"sda", "sdz", "sdaa", "sdab", "sda1", "sdaa12",
		"nvme0n1", "nvme0n1p2", "nvme12n3p4",
		"dm-0", "dm-3", "md0", "md127",
		"loop0", "zd16", "zd16p1", "xvda", "xvdb1",
		"mmcblk0", "mmcblk0p1", "sr0", "vda", "hdc",
		"zram0", "nbd3", "rbd0", "pmem0", "ublkb0",
	}
	for _, name := range names {
		parts, err := SplitName(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, JoinName(parts))
	}
}

func TestSplitNameTokens(t *testing.T) {
	parts, err := SplitName("nvme0n1p2")
	require.NoError(t, err)

	var texts []string
	for _, p := range parts {
		texts = append(texts, p.Text)
	}
	assert.Equal(t, []string{"nvme", "0", "n", "1", "p", "2"}, texts)
	assert.True(t, parts[1].IsNum)
	assert.False(t, parts[2].IsNum)

	parts, err = SplitName("dm-3")
	require.NoError(t, err)
	assert.Equal(t, "dm-", parts[0].Text)
	assert.Equal(t, 3, parts[1].Num)
}

func TestSplitNameRejectsUnparsable(t *testing.T) {
	for _, name := range []string{"", "sdA", "cciss!c0d0", "sd_a"} {
		_, err := SplitName(name)
		assert.True(t, errors.Is(err, ErrNameParse), "expected parse error for %q", name)
	}
}

func TestLettersToIndex(t *testing.T) {
	cases := map[string]int{"a": 0, "b": 1, "z": 25, "aa": 26, "ab": 27, "az": 51, "ba": 52}
	for letters, want := range cases {
		got, err := LettersToIndex(letters)
		require.NoError(t, err)
		assert.Equal(t, want, got, letters)
	}
}

func TestSmartOrderMonotonic(t *testing.T) {
	assert.True(t, Less("sda", "sdb"))
	assert.True(t, Less("sdz", "sdaa"))
	assert.True(t, Less("sdaa", "sdab"))
	assert.False(t, Less("sdaa", "sdz"))
	assert.True(t, Less("sda", "sda1"))
	assert.True(t, Less("sda2", "sda10"))
	assert.True(t, Less("nvme0n1", "nvme1n1"))
	assert.True(t, Less("md9", "md10"))
}

func TestSmartOrderSort(t *testing.T) {
	names := []string{"sdab", "sdb", "sdaa", "sdz", "sda", "sdA"}
	sort.Slice(names, func(i, j int) bool { return Less(names[i], names[j]) })
	assert.Equal(t, []string{"sda", "sdb", "sdz", "sdaa", "sdab", "sdA"}, names)
}

func TestParseMajMin(t *testing.T) {
	mm, err := ParseMajMin("259:3\n")
	require.NoError(t, err)
	assert.Equal(t, MajMin{Major: 259, Minor: 3}, mm)
	assert.Equal(t, "259:3", mm.String())

	_, err = ParseMajMin("garbage")
	assert.Error(t, err)
}

func TestHostValidateRejectsUnparsableNames(t *testing.T) {
	host := NewHost()
	host.Devices["sda"] = NewDevice("sda")
	require.NoError(t, host.Validate())

	host.Devices["sd_a"] = NewDevice("sd_a")
	assert.True(t, errors.Is(host.Validate(), ErrNameParse))

	delete(host.Devices, "sd_a")
	p := NewPartition("sda!1", "sda")
	host.Partitions[p.Name] = p
	host.Devices["sda"].Partitions = []*Partition{p}
	assert.True(t, errors.Is(host.Validate(), ErrNameParse))
}
