package collector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigreer/lsblkpro/internal/logging"
	"github.com/sigreer/lsblkpro/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o755))
}

// fakeSysfs lays out sda (two partitions, sda1 held by md0), md0 and loop0
func fakeSysfs(t *testing.T) string {
	root := t.TempDir()
	block := filepath.Join(root, "block")

	writeFile(t, filepath.Join(block, "sda", "dev"), "8:0\n")
	writeFile(t, filepath.Join(block, "sda", "size"), "1953525168\n")
	mkdir(t, filepath.Join(block, "sda", "holders"))
	writeFile(t, filepath.Join(block, "sda", "sda1", "start"), "2048\n")
	writeFile(t, filepath.Join(block, "sda", "sda1", "dev"), "8:1\n")
	writeFile(t, filepath.Join(block, "sda", "sda1", "size"), "1048576\n")
	mkdir(t, filepath.Join(block, "sda", "sda1", "holders", "md0"))
	writeFile(t, filepath.Join(block, "sda", "sda10", "start"), "4096\n")
	writeFile(t, filepath.Join(block, "sda", "sda10", "dev"), "8:10\n")
	writeFile(t, filepath.Join(block, "sda", "sda2", "start"), "1050624\n")
	writeFile(t, filepath.Join(block, "sda", "sda2", "dev"), "8:2\n")
	// a directory that starts with the device name but is no partition
	mkdir(t, filepath.Join(block, "sda", "sdaqueue"))

	writeFile(t, filepath.Join(block, "md0", "dev"), "9:0\n")
	writeFile(t, filepath.Join(block, "md0", "size"), "1046528\n")

	writeFile(t, filepath.Join(block, "loop0", "dev"), "7:0\n")
	writeFile(t, filepath.Join(block, "loop0", "size"), "0\n")
	return root
}

func TestWalkSysfs(t *testing.T) {
	root := fakeSysfs(t)

	records, err := WalkSysfs(root, false)
	require.NoError(t, err)

	var names []string
	for _, r := range records {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"md0", "sda", "sda1", "sda2", "sda10"}, names)

	sda := records[1]
	assert.Equal(t, model.MajMin{Major: 8, Minor: 0}, sda.MajMin)
	assert.Equal(t, int64(1953525168), sda.SizeSectors)
	assert.Equal(t, []string{"sda1", "sda2", "sda10"}, sda.Partitions)
	assert.Empty(t, sda.Holders)
	assert.False(t, sda.IsPartition())

	sda1 := records[2]
	assert.True(t, sda1.IsPartition())
	assert.Equal(t, "sda", sda1.Parent)
	assert.Equal(t, []string{"md0"}, sda1.Holders)
	assert.Equal(t, model.MajMin{Major: 8, Minor: 1}, sda1.MajMin)
}

func TestWalkSysfsAll(t *testing.T) {
	records, err := WalkSysfs(fakeSysfs(t), true)
	require.NoError(t, err)
	assert.Equal(t, "loop0", records[0].Name)
}

func TestWalkSysfsMissingRoot(t *testing.T) {
	_, err := WalkSysfs(filepath.Join(t.TempDir(), "nope"), false)
	assert.Error(t, err)
}

func TestParseLsblkPairs(t *testing.T) {
	out := []byte(`NAME="sda" KNAME="sda" MAJ:MIN="8:0" FSTYPE="" MOUNTPOINT="" SIZE="931.5G" TYPE="disk" PKNAME=""
NAME="sda1" KNAME="sda1" MAJ:MIN="8:1" FSTYPE="ext4" MOUNTPOINT="/mnt/my\x20data" SIZE="512M" TYPE="part" PKNAME="sda"

NAME="vg-root" KNAME="dm-0" MAJ:MIN="253:0" FSTYPE="xfs" MOUNTPOINT="/" SIZE="50G" TYPE="lvm" PKNAME="sda2"
`)
	records, err := ParseLsblkPairs(out)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "disk", records[0]["TYPE"])
	assert.Equal(t, "", records[0]["FSTYPE"])
	assert.Equal(t, "/mnt/my data", records[1]["MOUNTPOINT"])
	assert.Equal(t, "8:1", records[1]["MAJ:MIN"])
	assert.Equal(t, "dm-0", records[2].KernelName())
}

func TestParseLsblkPairsRequiresName(t *testing.T) {
	_, err := ParseLsblkPairs([]byte(`KNAME="sda" MAJ:MIN="8:0"`))
	assert.Error(t, err)
}

func TestReadDiskAliases(t *testing.T) {
	root := t.TempDir()
	byID := filepath.Join(root, "disk", "by-id")
	byUUID := filepath.Join(root, "disk", "by-uuid")
	mkdir(t, byID)
	mkdir(t, byUUID)
	require.NoError(t, os.Symlink("../../sda", filepath.Join(byID, "ata-WDC_WD10-68_WX1")))
	require.NoError(t, os.Symlink("../../sda1", filepath.Join(byID, "ata-WDC_WD10-68_WX1-part1")))
	require.NoError(t, os.Symlink("../../sda1", filepath.Join(byUUID, "0b6e2c4f-1111")))
	writeFile(t, filepath.Join(byID, "not-a-link"), "")

	aliases, err := ReadDiskAliases(root)
	require.NoError(t, err)
	assert.Equal(t, model.AliasRecords{
		"by-id": {
			"ata-WDC_WD10-68_WX1":       "sda",
			"ata-WDC_WD10-68_WX1-part1": "sda1",
		},
		"by-uuid": {"0b6e2c4f-1111": "sda1"},
	}, aliases)
}

func TestReadDiskAliasesMissingDir(t *testing.T) {
	aliases, err := ReadDiskAliases(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, aliases)
}

func TestFilterHiddenDevices(t *testing.T) {
	records := []model.LsblkRecord{
		{"NAME": "sda", "MAJ:MIN": "8:0"},
		{"NAME": "loop0", "MAJ:MIN": "7:0"},
		{"NAME": "loop0p1", "MAJ:MIN": "259:0", "PKNAME": "loop0"},
	}
	kept := filterLsblk(records, false)
	require.Len(t, kept, 1)
	assert.Equal(t, "sda", kept[0]["NAME"])
	assert.Len(t, filterLsblk(records, true), 3)

	aliases := model.AliasRecords{"by-uuid": {"a": "loop0p1", "b": "sda1", "c": "ram0"}}
	assert.Equal(t, model.AliasRecords{"by-uuid": {"b": "sda1"}}, filterAliases(aliases, false))
}

func TestReadUdevAliases(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b8:0"), `S:disk/by-id/ata-A
S:disk/by-path/pci-0000:00:17.0-ata-1
S:mapper/ignored
I:1234
E:DEVLINKS=/dev/disk/by-id/ata-A /dev/disk/by-id/wwn-0x5000
E:ID_MODEL=A
`)
	records := []model.SysfsRecord{
		{Name: "sda", MajMin: model.MajMin{Major: 8, Minor: 0}},
		{Name: "sdb", MajMin: model.MajMin{Major: 8, Minor: 16}},
	}

	aliases, err := ReadUdevAliases(root, records)
	require.NoError(t, err)
	assert.Equal(t, model.AliasRecords{
		"by-id":   {"ata-A": "sda", "wwn-0x5000": "sda"},
		"by-path": {"pci-0000:00:17.0-ata-1": "sda"},
	}, aliases)

	aliases, err = ReadUdevAliases(filepath.Join(root, "nope"), records)
	require.NoError(t, err)
	assert.Empty(t, aliases)
}

func TestMergeMissingKinds(t *testing.T) {
	aliases := model.AliasRecords{"by-id": {"ata-A": "sda"}}
	udev := model.AliasRecords{
		"by-id":   {"ata-B": "sda"},
		"by-vdev": {"a1": "sda"},
	}
	added := mergeMissingKinds(aliases, udev)
	assert.Equal(t, []string{"by-vdev"}, added)
	assert.Equal(t, map[string]string{"ata-A": "sda"}, aliases["by-id"])
	assert.Equal(t, map[string]string{"a1": "sda"}, aliases["by-vdev"])
}

const fakeLsblk = `#!/bin/sh
cat <<'OUT'
NAME="loop0" KNAME="loop0" MAJ:MIN="7:0" TYPE="loop" PKNAME=""
NAME="md0" KNAME="md0" MAJ:MIN="9:0" TYPE="raid1" PKNAME="sda1"
NAME="sda" KNAME="sda" MAJ:MIN="8:0" TYPE="disk" PKNAME=""
NAME="sda1" KNAME="sda1" MAJ:MIN="8:1" TYPE="part" PKNAME="sda"
OUT
`

const fakeZpoolStatus = `  pool: tank
 state: ONLINE
config:

	NAME        STATE     READ WRITE CKSUM
	tank        ONLINE       0     0     0
	  mirror-0  ONLINE       0     0     0
	    a1      ONLINE       0     0     0

errors: No known data errors
`

func TestCollectSources(t *testing.T) {
	dir := t.TempDir()
	lsblk := filepath.Join(dir, "lsblk")
	require.NoError(t, os.WriteFile(lsblk, []byte(fakeLsblk), 0o755))
	status := filepath.Join(dir, "status")
	writeFile(t, status, fakeZpoolStatus)
	udev := filepath.Join(dir, "udev")
	writeFile(t, filepath.Join(udev, "b8:0"), "S:disk/by-vdev/a1\n")

	opts := Options{
		SysRoot:      fakeSysfs(t),
		DevRoot:      t.TempDir(),
		LsblkPath:    lsblk,
		UdevRoot:     udev,
		ZpoolCommand: []string{"cat", status},
	}
	src, err := CollectSources(context.Background(), opts, logging.Nop())
	require.NoError(t, err)

	assert.Len(t, src.Sysfs, 5)
	require.Len(t, src.Lsblk, 3)
	assert.Equal(t, "md0", src.Lsblk[0]["NAME"])
	assert.Equal(t, model.AliasRecords{"by-vdev": {"a1": "sda"}}, src.Aliases)
	assert.Equal(t, map[string]string{"a1": "tank.mirror-0"}, src.ZPaths)
	assert.NoError(t, src.ZPoolErr)

	opts.ZpoolCommand = []string{"false"}
	src, err = CollectSources(context.Background(), opts, logging.Nop())
	require.NoError(t, err)
	assert.Error(t, src.ZPoolErr)
	assert.Nil(t, src.ZPaths)

	opts.LsblkPath = filepath.Join(dir, "missing-lsblk")
	_, err = CollectSources(context.Background(), opts, logging.Nop())
	assert.Error(t, err)
}
