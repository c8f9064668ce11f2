package snapshot

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigreer/lsblkpro/internal/model"
)

var takenAt = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func testHost() *model.Host {
	host := model.NewHost()

	sda := model.NewDevice("sda")
	sda.MajMin = model.MajMin{Major: 8, Minor: 0}
	sda.SizeSectors = 1953525168
	sda.Lsblk["NAME"] = "sda"
	sda.Lsblk["MAJ:MIN"] = "8:0"
	sda.Aliases["by-id"] = "ata-A"

	sda1 := model.NewPartition("sda1", "sda")
	sda1.MajMin = model.MajMin{Major: 8, Minor: 1}
	sda1.SizeSectors = 2048
	sda1.Holders = []string{"md0"}
	sda1.Lsblk["PKNAME"] = "sda"
	sda.Partitions = []*model.Partition{sda1}

	md0 := model.NewDevice("md0")
	md0.MajMin = model.MajMin{Major: 9, Minor: 0}
	md0.ZPath = "tank.mirror"

	host.Devices["sda"] = sda
	host.Devices["md0"] = md0
	host.Partitions["sda1"] = sda1
	host.MissingFromLsblk = []string{"md0"}
	return host
}

func testWarnings() []model.Warning {
	return []model.Warning{{
		Kind:    model.WarnZpoolUnavailable,
		Message: "zpool status failed",
		Hint:    "add a sudoers entry",
	}}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatYAML, FormatCBOR} {
		t.Run(string(format), func(t *testing.T) {
			doc := New(testHost(), testWarnings(), "nas", takenAt)

			data, err := Marshal(doc, format)
			require.NoError(t, err)

			got, err := Unmarshal(data, format)
			require.NoError(t, err)
			assert.True(t, takenAt.Equal(got.TakenAt))
			got.TakenAt = doc.TakenAt
			assert.Equal(t, doc, got)

			host, warnings, err := got.Host()
			require.NoError(t, err)
			assert.Equal(t, testWarnings(), warnings)
			assert.Equal(t, []string{"md0", "sda"}, deviceNames(host))
			assert.Equal(t, "sda", host.Partitions["sda1"].Parent)
			assert.Equal(t, []string{"md0"}, host.Partitions["sda1"].Holders)
			assert.Equal(t, "tank.mirror", host.Devices["md0"].ZPath)
			assert.Equal(t, model.MajMin{Major: 8, Minor: 1}, host.Partitions["sda1"].MajMin)
		})
	}
}

func deviceNames(host *model.Host) []string {
	var out []string
	for _, d := range host.DeviceList() {
		out = append(out, d.Name)
	}
	return out
}

func TestUnknownVersionRejected(t *testing.T) {
	_, err := Unmarshal([]byte("version: 2\nhostname: nas\n"), FormatYAML)
	assert.True(t, errors.Is(err, ErrVersion))

	doc := New(testHost(), nil, "nas", takenAt)
	doc.Version = 7
	data, err := Marshal(doc, FormatCBOR)
	require.NoError(t, err)
	_, err = Unmarshal(data, FormatCBOR)
	assert.True(t, errors.Is(err, ErrVersion))

	_, _, err = doc.Host()
	assert.True(t, errors.Is(err, ErrVersion))
}

func TestHostRejectsBadDocuments(t *testing.T) {
	doc := New(testHost(), nil, "nas", takenAt)
	doc.Devices[1].Partitions[0].MajMin = "garbage"
	_, _, err := doc.Host()
	assert.True(t, errors.Is(err, model.ErrDataInconsistent))

	doc = New(testHost(), nil, "nas", takenAt)
	doc.Devices = append(doc.Devices, doc.Devices[0])
	_, _, err = doc.Host()
	assert.True(t, errors.Is(err, model.ErrDataInconsistent))
}

func TestHostRejectsMajMinMismatch(t *testing.T) {
	doc := New(testHost(), nil, "nas", takenAt)
	require.Equal(t, "sda", doc.Devices[1].Name)
	doc.Devices[1].Lsblk["MAJ:MIN"] = "8:16"
	_, _, err := doc.Host()
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDataInconsistent))
	assert.Contains(t, err.Error(), "sda is 8:0 in sysfs but 8:16 in lsblk")

	doc.Devices[1].Lsblk["MAJ:MIN"] = "8:0"
	_, _, err = doc.Host()
	assert.NoError(t, err)
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFor("host.yaml"))
	assert.Equal(t, FormatYAML, FormatFor("host.yml"))
	assert.Equal(t, FormatYAML, FormatFor("data"))
	assert.Equal(t, FormatCBOR, FormatFor("host.CBOR"))
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"host.yaml", "host.cbor"} {
		path := filepath.Join(dir, name)
		doc := New(testHost(), nil, "nas", takenAt)
		require.NoError(t, Save(path, doc))

		got, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "nas", got.Hostname)
		assert.Len(t, got.Devices, 2)
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
