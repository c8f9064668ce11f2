package zfs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoPoolStatus = `  pool: tank
 state: ONLINE
  scan: scrub repaired 0B in 02:11:09 with 0 errors on Sun Oct 11 02:35:10 2026
config:

	NAME        STATE     READ WRITE CKSUM
	tank        ONLINE       0     0     0
	  mirror-0  ONLINE       0     0     0
	    a1      ONLINE       0     0     0
	    a2      ONLINE       0     0     0
	  mirror-1  ONLINE       0     0     0
	    b1      ONLINE       0     0     0
	    b2      ONLINE       0     0     0
	spares
	  s1        AVAIL
	  s2        AVAIL

errors: No known data errors

  pool: backup
 state: ONLINE
config:

	NAME                        STATE     READ WRITE CKSUM
	backup                      ONLINE       0     0     0
	  raidz1-0                  ONLINE       0     0     0
	    ata-WDC_WD40-68_WX11    ONLINE       0     0     0
	    ata-WDC_WD40-68_WX12    ONLINE       0     0     0
	spares
	  s1                        AVAIL

errors: No known data errors
`

func TestParseStatusPaths(t *testing.T) {
	paths, err := ParseStatusPaths(twoPoolStatus)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"a1":                   "tank.mirror-0",
		"a2":                   "tank.mirror-0",
		"b1":                   "tank.mirror-1",
		"b2":                   "tank.mirror-1",
		"s1":                   SharedSpare,
		"s2":                   "tank.spares",
		"ata-WDC_WD40-68_WX11": "backup.raidz1-0",
		"ata-WDC_WD40-68_WX12": "backup.raidz1-0",
	}, paths)
}

func TestParseStatusPathsNoPools(t *testing.T) {
	paths, err := ParseStatusPaths("no pools available\n")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestParseStatusPathsOddIndent(t *testing.T) {
	status := "config:\n\n\tNAME STATE READ WRITE CKSUM\n\ttank ONLINE 0 0 0\n\t   sda ONLINE 0 0 0\n"
	_, err := ParseStatusPaths(status)
	assert.True(t, errors.Is(err, ErrMalformedStatus))
}

func TestStripSingleDiskSuffix(t *testing.T) {
	all := map[string]string{"a1": "tank.mirror-0", "b1": "tank.raidz1-0"}
	assert.Equal(t, map[string]string{"a1": "tank.mirror", "b1": "tank.raidz1"}, StripSingleDiskSuffix(all))

	mixed := map[string]string{"a1": "tank.mirror-0", "b1": "tank.mirror-1"}
	assert.Equal(t, mixed, StripSingleDiskSuffix(mixed))

	assert.Empty(t, StripSingleDiskSuffix(map[string]string{}))
}
