// Package table turns a reconciled host into the rows, column plan and text
// that lsblkpro prints.
package table

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sigreer/lsblkpro/internal/model"
)

// Keys computed by Decorate
const (
	KeyDisplayName = "displayname"
	KeyLocation    = "location"
)

// Keys answered by the entity itself rather than lsblk or /dev/disk
const (
	KeyName       = "name"
	KeyMajor      = "major"
	KeyMinor      = "minor"
	KeySize       = "size"
	KeyHolders    = "holders"
	KeyPartitions = "partitions"
	KeyZPath      = "zpath"
)

// lsblk filesystem types that only say "member of something shown elsewhere"
var memberFSTypes = map[string]bool{
	"linux_raid_member": true,
	"zfs_member":        true,
}

// Row is one table line: a device or one of its partitions
type Row struct {
	Entity model.Entity
	Device *model.Device

	computed  map[string]string
	blanked   map[string]bool
	ambiguous map[string]bool
}

// NewRow wraps a device
func NewRow(d *model.Device) *Row {
	return &Row{Entity: d, Device: d}
}

// NewPartitionRow wraps a partition of d
func NewPartitionRow(d *model.Device, p *model.Partition) *Row {
	return &Row{Entity: p, Device: d}
}

// Name is the kernel name of the row's entity
func (r *Row) Name() string {
	return r.Entity.Common().Name
}

// IsPartition reports whether the row is a partition
func (r *Row) IsPartition() bool {
	return r.Entity.IsPartition()
}

type strategy struct {
	name string
	keys func(r *Row) []string
	get  func(r *Row, key string) (string, bool)
}

// strategies are tried in order; the first non-empty value wins
var strategies = []strategy{
	{name: "computed", keys: computedKeys, get: computedField},
	{name: "entity", keys: entityKeys, get: entityField},
	{name: "lsblk", keys: lsblkKeys, get: lsblkField},
	{name: "aliases", keys: aliasKeys, get: aliasField},
}

// Lookup resolves key through the computed, entity, lsblk and alias
// strategies. ok is false only when no strategy knows the key.
func (r *Row) Lookup(key string) (string, bool) {
	if r.blanked[key] {
		return "", true
	}
	var value, winner string
	found := false
	for _, s := range strategies {
		v, ok := s.get(r, key)
		if !ok {
			continue
		}
		found = true
		if v == "" {
			continue
		}
		if winner == "" {
			value, winner = v, s.name
			continue
		}
		if r.ambiguous == nil {
			r.ambiguous = make(map[string]bool)
		}
		r.ambiguous[key] = true
	}
	return value, found
}

// Size implements filter.Subject
func (r *Row) Size() (int64, bool) {
	c := r.Entity.Common()
	return c.SizeBytes(), c.SizeSectors > 0
}

// Keys lists every field the row can answer
func (r *Row) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, s := range strategies {
		for _, k := range s.keys(r) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func computedKeys(r *Row) []string {
	keys := make([]string, 0, len(r.computed))
	for k := range r.computed {
		keys = append(keys, k)
	}
	return keys
}

func computedField(r *Row, key string) (string, bool) {
	v, ok := r.computed[key]
	return v, ok
}

func entityKeys(r *Row) []string {
	keys := []string{KeyName, KeyMajor, KeyMinor, KeySize, KeyHolders}
	if !r.IsPartition() {
		keys = append(keys, KeyPartitions, KeyZPath)
	}
	return keys
}

func entityField(r *Row, key string) (string, bool) {
	c := r.Entity.Common()
	switch key {
	case KeyName:
		return c.Name, true
	case KeyMajor:
		return strconv.Itoa(c.MajMin.Major), true
	case KeyMinor:
		return strconv.Itoa(c.MajMin.Minor), true
	case KeySize:
		return strconv.FormatInt(c.SizeBytes(), 10), true
	case KeyHolders:
		return strings.Join(c.Holders, ","), true
	}
	if r.IsPartition() {
		return "", false
	}
	switch key {
	case KeyPartitions:
		names := make([]string, len(r.Device.Partitions))
		for i, p := range r.Device.Partitions {
			names[i] = p.Name
		}
		return strings.Join(names, ","), true
	case KeyZPath:
		return c.ZPath, true
	}
	return "", false
}

func lsblkKeys(r *Row) []string {
	c := r.Entity.Common()
	keys := make([]string, 0, len(c.Lsblk))
	for k := range c.Lsblk {
		keys = append(keys, k)
	}
	return keys
}

func lsblkField(r *Row, key string) (string, bool) {
	return r.Entity.Common().LsblkField(key)
}

func aliasKeys(r *Row) []string {
	c := r.Entity.Common()
	keys := make([]string, 0, len(c.Aliases))
	for k := range c.Aliases {
		if k == model.AliasVdev && r.IsPartition() {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// vdev names belong to whole disks; a partition's by-vdev link is hidden
func aliasField(r *Row, key string) (string, bool) {
	if key == model.AliasVdev && r.IsPartition() {
		return "", false
	}
	return r.Entity.Common().Alias(key)
}

// RowOptions control which entities become rows
type RowOptions struct {
	OnlyDevices bool
	AllDevices  bool
}

// BuildRows lists each device followed by its partitions. Partitions of
// zpool members are left out unless AllDevices is set.
func BuildRows(devices []*model.Device, opts RowOptions) []*Row {
	var rows []*Row
	for _, d := range devices {
		rows = append(rows, NewRow(d))
		if opts.OnlyDevices {
			continue
		}
		if _, isVdev := d.Alias(model.AliasVdev); (isVdev || d.ZPath != "") && !opts.AllDevices {
			continue
		}
		for _, p := range d.Partitions {
			rows = append(rows, NewPartitionRow(d, p))
		}
	}
	return rows
}

// Decorate computes the display name and location of every row and blanks
// member filesystem types. It must run after filtering: the tree glyph
// depends on the row that follows, and -w FSTYPE=zfs_member still matches.
func Decorate(rows []*Row, glyphs Glyphs) {
	for i, r := range rows {
		last := i+1 >= len(rows) || !rows[i+1].IsPartition() || rows[i+1].Device != r.Device
		r.computed = map[string]string{
			KeyDisplayName: displayName(r, glyphs, last),
			KeyLocation:    location(r),
		}
		r.blanked = nil
		if fs, _ := r.Entity.Common().LsblkField("FSTYPE"); memberFSTypes[fs] {
			r.blanked = map[string]bool{"FSTYPE": true}
		}
	}
}

// kernel types that are obvious from the name and need no tag
var plainTypes = map[string]bool{"disk": true, "part": true, "md": true}

func displayName(r *Row, glyphs Glyphs, last bool) string {
	c := r.Entity.Common()

	kname := c.Name
	if v, ok := c.LsblkField("KNAME"); ok && v != "" {
		kname = v
	}
	name := kname
	if v, ok := c.LsblkField("NAME"); ok && v != "" && v != kname {
		name += "=" + v
	}

	if !r.IsPartition() {
		if vdev, ok := c.Alias(model.AliasVdev); ok && vdev != "" {
			name += Bullet + vdev
		}
	}

	typ, _ := c.LsblkField("TYPE")
	if typ != "" && !plainTypes[typ] && !(typ == "loop" && strings.HasPrefix(kname, "loop")) {
		name += Bullet + "(" + typ + ")"
	}

	if r.IsPartition() {
		if last {
			return glyphs.End + name
		}
		return glyphs.Mid + name
	}
	return name
}

func location(r *Row) string {
	c := r.Entity.Common()
	var parts []string
	if !r.IsPartition() && c.ZPath != "" {
		parts = append(parts, c.ZPath)
	}
	if mnt, _ := c.LsblkField("MOUNTPOINT"); mnt != "" {
		parts = append(parts, mnt)
	}
	if len(c.Holders) > 0 {
		parts = append(parts, "["+strings.Join(c.Holders, ", ")+"]")
	}
	return strings.Join(parts, " ")
}

// Warnings reports every key that more than one lookup strategy answered
func Warnings(rows []*Row) []model.Warning {
	var warnings []model.Warning
	for _, r := range rows {
		keys := make([]string, 0, len(r.ambiguous))
		for k := range r.ambiguous {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnFieldAmbiguous,
				Subject: r.Name(),
				Message: "field " + k + " has more than one source",
			})
		}
	}
	return warnings
}
