// Package order decides the sequence in which devices are listed.
package order

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sigreer/lsblkpro/internal/model"
)

// Lookup returns the display value of a field for a device
type Lookup func(d *model.Device, key string) (string, bool)

// Smart lists every device, placing the members of a holder (md, dm, ...)
// in a contiguous group followed by the holder itself. Groups are ordered
// by their first member's smart name.
func Smart(host *model.Host) []*model.Device {
	devices := host.DeviceList()

	todo := make(map[string]bool, len(devices))
	for _, d := range devices {
		todo[d.Name] = true
	}

	heldBy := make(map[string][]string)
	var holderOrder []string
	for _, d := range devices {
		for _, holder := range host.HoldersOf(d) {
			if _, known := host.Devices[holder]; !known {
				continue
			}
			if _, seen := heldBy[holder]; !seen {
				holderOrder = append(holderOrder, holder)
			}
			heldBy[holder] = append(heldBy[holder], d.Name)
			delete(todo, holder)
			delete(todo, d.Name)
		}
	}

	// a group is headed by a holder, or by a device that holds nothing and is
	// held by nothing
	heads := append([]string(nil), holderOrder...)
	for _, d := range devices {
		if todo[d.Name] {
			heads = append(heads, d.Name)
		}
	}

	// nested holders (dm on md on sd) sort by their innermost first member
	var leaf func(name string, depth int) string
	leaf = func(name string, depth int) string {
		members, ok := heldBy[name]
		if !ok || depth > len(devices) {
			return name
		}
		return leaf(members[0], depth+1)
	}
	sort.SliceStable(heads, func(i, j int) bool {
		return model.Less(leaf(heads[i], 0), leaf(heads[j], 0))
	})

	emitted := make(map[string]bool, len(devices))
	expanding := make(map[string]bool)
	ordered := make([]*model.Device, 0, len(devices))
	var emit func(name string)
	emit = func(name string) {
		if emitted[name] || expanding[name] {
			return
		}
		if members, ok := heldBy[name]; ok {
			expanding[name] = true
			for _, m := range members {
				emit(m)
			}
		}
		emitted[name] = true
		ordered = append(ordered, host.Devices[name])
	}
	for _, head := range heads {
		emit(head)
	}
	return ordered
}

// Explicit sorts devices by the values of keys, falling back to smart name
// order. No holder grouping is applied.
func Explicit(host *model.Host, keys []string, lookup Lookup) []*model.Device {
	devices := host.DeviceList()

	values := make(map[string][]string, len(devices))
	for _, d := range devices {
		row := make([]string, len(keys))
		for i, key := range keys {
			row[i], _ = lookup(d, key)
		}
		values[d.Name] = row
	}

	sort.SliceStable(devices, func(i, j int) bool {
		a, b := values[devices[i].Name], values[devices[j].Name]
		for k := range a {
			if c := compareValues(a[k], b[k]); c != 0 {
				return c < 0
			}
		}
		return model.Less(devices[i].Name, devices[j].Name)
	})
	return devices
}

// compareValues orders integers (size, major, minor) numerically and
// everything else as strings
func compareValues(a, b string) int {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

// Devices picks Explicit when sort keys are given, Smart otherwise, and
// reverses the result on request
func Devices(host *model.Host, keys []string, reverse bool, lookup Lookup) []*model.Device {
	var devices []*model.Device
	if len(keys) > 0 {
		devices = Explicit(host, keys, lookup)
	} else {
		devices = Smart(host)
	}
	if reverse {
		for i, j := 0, len(devices)-1; i < j; i, j = i+1, j-1 {
			devices[i], devices[j] = devices[j], devices[i]
		}
	}
	return devices
}
