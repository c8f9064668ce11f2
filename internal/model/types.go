package model

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// SectorSize is the unit of the sysfs size attribute
const SectorSize = 512

// Alias kinds that are cross-checked against lsblk fields
const (
	AliasID        = "by-id"
	AliasPath      = "by-path"
	AliasVdev      = "by-vdev"
	AliasUUID      = "by-uuid"
	AliasPartUUID  = "by-partuuid"
	AliasPartLabel = "by-partlabel"
	AliasLabel     = "by-label"
)

// MajMin identifies a kernel device node
type MajMin struct {
	Major int
	Minor int
}

var reMajMin = regexp.MustCompile(`^(\d+):(\d+)`)

// ParseMajMin parses the "8:16" form used by sysfs dev files and lsblk
func ParseMajMin(s string) (MajMin, error) {
	m := reMajMin.FindStringSubmatch(s)
	if m == nil {
		return MajMin{}, fmt.Errorf("invalid major:minor %q", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	return MajMin{Major: major, Minor: minor}, nil
}

func (m MajMin) String() string {
	return fmt.Sprintf("%d:%d", m.Major, m.Minor)
}

// Record holds the attributes shared by devices and partitions
type Record struct {
	Name        string
	MajMin      MajMin
	SizeSectors int64
	Holders     []string

	// Lsblk is keyed exactly as lsblk -P -O emits columns (NAME, MAJ:MIN, FSTYPE, ...)
	Lsblk map[string]string

	// Aliases maps a /dev/disk/<kind> directory name to the symlink basename
	Aliases map[string]string

	// ZPath is the dotted pool.vdev path when the device belongs to a zpool
	ZPath string
}

func newRecord(name string) Record {
	return Record{
		Name:    name,
		Lsblk:   make(map[string]string),
		Aliases: make(map[string]string),
	}
}

// SizeBytes returns the capacity in bytes
func (r *Record) SizeBytes() int64 {
	return r.SizeSectors * SectorSize
}

// LsblkField returns an lsblk column value
func (r *Record) LsblkField(key string) (string, bool) {
	v, ok := r.Lsblk[key]
	return v, ok
}

// Alias returns the /dev/disk/<kind> basename for this entity
func (r *Record) Alias(kind string) (string, bool) {
	v, ok := r.Aliases[kind]
	return v, ok
}

// Entity is implemented by Device and Partition
type Entity interface {
	Common() *Record
	IsPartition() bool
}

// Device is a top-level block device owning its partitions
type Device struct {
	Record
	Partitions []*Partition
}

func (d *Device) Common() *Record  { return &d.Record }
func (d *Device) IsPartition() bool { return false }

// Partition is a sub-division of a Device
type Partition struct {
	Record
	Parent string
}

func (p *Partition) Common() *Record  { return &p.Record }
func (p *Partition) IsPartition() bool { return true }

// NewDevice creates an empty device skeleton
func NewDevice(name string) *Device {
	return &Device{Record: newRecord(name)}
}

// NewPartition creates an empty partition skeleton owned by parent
func NewPartition(name, parent string) *Partition {
	return &Partition{Record: newRecord(name), Parent: parent}
}

// Host is the reconciled view of every block device on one machine
type Host struct {
	Devices    map[string]*Device
	Partitions map[string]*Partition

	// MissingFromLsblk lists entities seen in sysfs that lsblk did not report
	MissingFromLsblk []string
}

// NewHost creates an empty host
func NewHost() *Host {
	return &Host{
		Devices:    make(map[string]*Device),
		Partitions: make(map[string]*Partition),
	}
}

// Entity looks up a device or partition by kernel name
func (h *Host) Entity(name string) (Entity, bool) {
	if d, ok := h.Devices[name]; ok {
		return d, true
	}
	if p, ok := h.Partitions[name]; ok {
		return p, true
	}
	return nil, false
}

// DeviceList returns all devices in smart name order
func (h *Host) DeviceList() []*Device {
	devices := make([]*Device, 0, len(h.Devices))
	for _, d := range h.Devices {
		devices = append(devices, d)
	}
	sort.SliceStable(devices, func(i, j int) bool {
		return Less(devices[i].Name, devices[j].Name)
	})
	return devices
}

// HoldersOf returns the holders of a device and of its partitions, deduplicated
func (h *Host) HoldersOf(d *Device) []string {
	seen := make(map[string]bool)
	var holders []string
	add := func(names []string) {
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				holders = append(holders, name)
			}
		}
	}
	add(d.Holders)
	for _, p := range d.Partitions {
		add(p.Holders)
	}
	return holders
}

// CheckMajMin compares an lsblk MAJ:MIN column against the number sysfs gave name
func CheckMajMin(name string, want MajMin, lsblk string) error {
	mm, err := ParseMajMin(lsblk)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDataInconsistent, name, err)
	}
	if mm != want {
		return fmt.Errorf("%w: %s is %s in sysfs but %s in lsblk",
			ErrDataInconsistent, name, want, mm)
	}
	return nil
}

// Validate checks the parent/child invariants of the host and that every
// name parses, so DeviceList never has to order an unparsable name
func (h *Host) Validate() error {
	for name := range h.Devices {
		if _, err := SplitName(name); err != nil {
			return err
		}
	}
	for name := range h.Partitions {
		if _, err := SplitName(name); err != nil {
			return err
		}
	}
	for _, d := range h.Devices {
		for _, p := range d.Partitions {
			owned, ok := h.Partitions[p.Name]
			if !ok || owned != p {
				return fmt.Errorf("%w: partition %s of %s not registered", ErrDataInconsistent, p.Name, d.Name)
			}
			if p.Parent != d.Name {
				return fmt.Errorf("%w: partition %s claims parent %s, listed under %s",
					ErrDataInconsistent, p.Name, p.Parent, d.Name)
			}
			if pk, ok := p.Lsblk["PKNAME"]; ok && pk != "" && pk != d.Name {
				return fmt.Errorf("%w: partition %s has PKNAME %s, expected %s",
					ErrDataInconsistent, p.Name, pk, d.Name)
			}
		}
	}
	return nil
}
