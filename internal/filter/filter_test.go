package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	name   string
	fields map[string]string
	size   int64
}

func (r fakeRow) Lookup(key string) (string, bool) {
	v, ok := r.fields[key]
	return v, ok
}

func (r fakeRow) Size() (int64, bool) {
	return r.size, r.size > 0
}

func rows() []fakeRow {
	return []fakeRow{
		{name: "sda1", fields: map[string]string{"FSTYPE": "ext4", "LABEL": "root"}, size: 50 << 30},
		{name: "sda2", fields: map[string]string{"FSTYPE": "ext2"}, size: 1 << 30},
		{name: "sdb1", fields: map[string]string{"FSTYPE": "ext3"}, size: 4 << 30},
		{name: "sdc1", fields: map[string]string{"FSTYPE": "xfs", "LABEL": ""}, size: 8 << 40},
		{name: "sdd", fields: map[string]string{}},
	}
}

func namesOf(rs []fakeRow) []string {
	var out []string
	for _, r := range rs {
		out = append(out, r.name)
	}
	return out
}

func apply(t *testing.T, exprs ...string) []string {
	t.Helper()
	preds, err := Compile(exprs, DefaultEnv())
	require.NoError(t, err)
	return namesOf(Apply(preds, rows()))
}

func TestRegexVersusEquality(t *testing.T) {
	assert.Equal(t, []string{"sda1", "sda2", "sdb1"}, apply(t, "FSTYPE=~^ext"))
	assert.Equal(t, []string{"sda1"}, apply(t, "FSTYPE=ext4"))
}

func TestRegexAnchoredAtStart(t *testing.T) {
	assert.Equal(t, []string{"sda1", "sda2", "sdb1"}, apply(t, "FSTYPE=~ext"))
	assert.Empty(t, apply(t, "FSTYPE=~xt"))
	assert.Equal(t, []string{"sda1"}, apply(t, "FSTYPE=~ext4$"))
}

func TestNotEqual(t *testing.T) {
	// sdd has no FSTYPE at all and is excluded rather than matched
	assert.Equal(t, []string{"sda2", "sdb1", "sdc1"}, apply(t, "FSTYPE!=ext4"))
}

func TestIsSet(t *testing.T) {
	assert.Equal(t, []string{"sda1"}, apply(t, "LABEL"))
}

func TestUnknownKeyNeverMatches(t *testing.T) {
	assert.Empty(t, apply(t, "NOPE=x"))
	assert.Empty(t, apply(t, "NOPE"))
}

func TestRelativeSize(t *testing.T) {
	assert.Equal(t, []string{"sda1", "sdc1"}, apply(t, "size>4GiB"))
	assert.Equal(t, []string{"sda1", "sdb1", "sdc1"}, apply(t, "size>=4GiB"))
	assert.Equal(t, []string{"sda2"}, apply(t, "size<2000000000"))
	assert.Equal(t, []string{"sda2", "sdb1"}, apply(t, "size<=4294967296"))
}

func TestSizeEqualityUsesShortString(t *testing.T) {
	assert.Equal(t, []string{"sdb1"}, apply(t, "size=4.0G"))
	assert.Empty(t, apply(t, "size=4GB"))
}

func TestCombinedFilters(t *testing.T) {
	assert.Equal(t, []string{"sda2", "sdb1"}, apply(t, "FSTYPE=~ext", "size<10GB"))
}

func TestDescriptions(t *testing.T) {
	preds, err := Compile([]string{"size>4GB", "FSTYPE=~^ext", "NAME=sdc", "TRAN!=usb", "LABEL", "MAJ:MIN=8:0"}, DefaultEnv())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"size > 4000000000 bytes",
		"FSTYPE matches regexp /^ext/",
		"NAME = sdc",
		"TRAN != usb",
		"LABEL is set",
		"MAJ:MIN = 8:0",
	}, Describe(preds))
}

func TestCompileErrors(t *testing.T) {
	for _, expr := range []string{"FSTYPE>ext", "=ext4", "FSTYPE=~(", "size>lots", "FSTYPE!ext"} {
		_, err := Compile([]string{expr}, DefaultEnv())
		assert.Error(t, err, expr)
	}
}
