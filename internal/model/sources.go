package model

// SysfsRecord is one /sys/block entry as read by the sysfs walker. Device
// records list their partition children; partition records name their parent.
type SysfsRecord struct {
	Name        string
	MajMin      MajMin
	SizeSectors int64
	Holders     []string

	// Partitions is only set on device records
	Partitions []string

	// Parent is only set on partition records
	Parent string
}

// IsPartition reports whether the record describes a partition
func (r SysfsRecord) IsPartition() bool {
	return r.Parent != ""
}

// LsblkRecord is one line of lsblk -P output as KEY -> VALUE
type LsblkRecord map[string]string

// KernelName prefers KNAME over NAME, since NAME is the mapper name
// (vg-root) for device-mapper devices while sysfs knows them as dm-N
func (r LsblkRecord) KernelName() string {
	if k := r["KNAME"]; k != "" {
		return k
	}
	return r["NAME"]
}

// AliasRecords maps an alias kind (by-id, by-uuid, ...) to
// symlink basename -> resolved kernel name
type AliasRecords map[string]map[string]string

// Sources is one point-in-time snapshot of every raw input
type Sources struct {
	Sysfs   []SysfsRecord
	Lsblk   []LsblkRecord
	Aliases AliasRecords

	// ZPaths maps a vdev or by-id alias to a dotted pool path
	ZPaths map[string]string

	// ZPoolErr is set when zpool status could not be read; ZPaths is then empty
	ZPoolErr error
}
