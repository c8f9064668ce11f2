// Package reconcile merges sysfs, lsblk, /dev/disk and zpool status data
// into one model.Host.
package reconcile

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/sigreer/lsblkpro/internal/collector"
	"github.com/sigreer/lsblkpro/internal/model"
	"github.com/sigreer/lsblkpro/internal/zfs"
)

// crossChecked maps alias kinds to the lsblk field that must agree with them
var crossChecked = map[string]string{
	model.AliasUUID:     "UUID",
	model.AliasPartUUID: "PARTUUID",
}

// Reconcile builds the host from one snapshot of raw sources. sysfs defines
// the structure; lsblk and /dev/disk may only annotate entities sysfs knows.
func Reconcile(src *model.Sources) (*model.Host, []model.Warning, error) {
	host, err := buildSkeleton(src.Sysfs)
	if err != nil {
		return nil, nil, err
	}

	var warnings []model.Warning

	if err := mergeLsblk(host, src.Lsblk); err != nil {
		return nil, nil, err
	}

	w, err := attachAliases(host, src.Aliases)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, w...)

	if src.ZPoolErr != nil {
		warnings = append(warnings, zpoolWarning(src.ZPoolErr))
	} else {
		resolveZPaths(host, src.ZPaths)
	}

	warnings = append(warnings, checkLocations(host)...)

	if err := host.Validate(); err != nil {
		return nil, nil, err
	}
	return host, warnings, nil
}

func buildSkeleton(records []model.SysfsRecord) (*model.Host, error) {
	host := model.NewHost()
	expected := make(map[string]int)

	for _, rec := range records {
		if _, err := model.SplitName(rec.Name); err != nil {
			return nil, err
		}
		if _, dup := host.Entity(rec.Name); dup {
			return nil, fmt.Errorf("%w: %s listed twice in sysfs", model.ErrDataInconsistent, rec.Name)
		}

		if !rec.IsPartition() {
			d := model.NewDevice(rec.Name)
			fill(&d.Record, rec)
			host.Devices[rec.Name] = d
			expected[rec.Name] = len(rec.Partitions)
			continue
		}

		parent, ok := host.Devices[rec.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: partition %s precedes or lacks its device %s",
				model.ErrDataInconsistent, rec.Name, rec.Parent)
		}
		p := model.NewPartition(rec.Name, rec.Parent)
		fill(&p.Record, rec)
		host.Partitions[rec.Name] = p
		parent.Partitions = append(parent.Partitions, p)
	}

	// every partition a device listed must have been walked
	for name, want := range expected {
		if got := len(host.Devices[name].Partitions); got != want {
			return nil, fmt.Errorf("%w: %s lists %d partitions, %d walked",
				model.ErrDataInconsistent, name, want, got)
		}
	}
	return host, nil
}

func fill(r *model.Record, rec model.SysfsRecord) {
	r.MajMin = rec.MajMin
	r.SizeSectors = rec.SizeSectors
	r.Holders = append([]string(nil), rec.Holders...)
	sort.Strings(r.Holders)
}

func mergeLsblk(host *model.Host, records []model.LsblkRecord) error {
	merged := make(map[string]bool)

	for _, rec := range records {
		name := rec.KernelName()
		entity, ok := host.Entity(name)
		if !ok {
			return fmt.Errorf("%w: lsblk reports %s, sysfs does not", model.ErrUnknownDevice, name)
		}

		r := entity.Common()
		if err := model.CheckMajMin(name, r.MajMin, rec["MAJ:MIN"]); err != nil {
			return err
		}

		// lsblk -P repeats shared holders (md, dm) once per member; the
		// repeats differ only in PKNAME, and the first one is kept
		if merged[name] {
			continue
		}
		for k, v := range rec {
			r.Lsblk[k] = v
		}
		merged[name] = true
	}

	var missing []string
	for name := range host.Devices {
		if !merged[name] {
			missing = append(missing, name)
		}
	}
	for name := range host.Partitions {
		if !merged[name] {
			missing = append(missing, name)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return model.Less(missing[i], missing[j]) })
	host.MissingFromLsblk = missing
	return nil
}

func attachAliases(host *model.Host, aliases model.AliasRecords) ([]model.Warning, error) {
	var warnings []model.Warning

	kinds := make([]string, 0, len(aliases))
	for kind := range aliases {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		links := aliases[kind]
		basenames := make([]string, 0, len(links))
		for b := range links {
			basenames = append(basenames, b)
		}
		sort.Strings(basenames)

		for _, basename := range basenames {
			target := links[basename]
			entity, ok := host.Entity(target)
			if !ok {
				return nil, fmt.Errorf("%w: /dev/disk/%s/%s points at %s",
					model.ErrUnknownDevice, kind, basename, target)
			}
			r := entity.Common()

			if field, checked := crossChecked[kind]; checked {
				v, present := r.Lsblk[field]
				switch {
				case !present || v == "":
					warnings = append(warnings, model.Warning{
						Kind:    model.WarnIncompleteLsblk,
						Subject: target,
						Message: fmt.Sprintf("lsblk has no %s to confirm %s %s", field, kind, basename),
					})
				case v != basename:
					return nil, fmt.Errorf("%w: %s has %s %s but /dev/disk/%s/%s",
						model.ErrDataInconsistent, target, field, v, kind, basename)
				}
			}

			// several by-id/by-path links can point at one disk; keep the
			// first in sorted order so output is stable
			if _, set := r.Aliases[kind]; !set {
				r.Aliases[kind] = basename
			}
		}
	}
	return warnings, nil
}

func resolveZPaths(host *model.Host, zpaths map[string]string) {
	zpaths = zfs.StripSingleDiskSuffix(zpaths)
	for _, d := range host.Devices {
		for _, kind := range []string{model.AliasVdev, model.AliasID} {
			alias, ok := d.Aliases[kind]
			if !ok {
				continue
			}
			if zpath, ok := zpaths[alias]; ok {
				d.ZPath = zpath
				break
			}
		}
	}
}

func zpoolWarning(err error) model.Warning {
	w := model.Warning{
		Kind:    model.WarnZpoolUnavailable,
		Message: fmt.Sprintf("couldn't get zpool status non-interactively: %v", err),
	}
	if errors.Is(err, collector.ErrSudoPassword) {
		user := os.Getenv("USER")
		if user == "" {
			user = "<user>"
		}
		w.Hint = fmt.Sprintf("consider adding this to sudoers:\n\n    %s ALL=NOPASSWD: /sbin/zpool status", user)
	}
	return w
}

func checkLocations(host *model.Host) []model.Warning {
	var warnings []model.Warning
	for _, d := range host.DeviceList() {
		if d.ZPath != "" && d.Lsblk["MOUNTPOINT"] != "" {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnLocationAmbiguous,
				Subject: d.Name,
				Message: fmt.Sprintf("in zpool %s and mounted at %s", d.ZPath, d.Lsblk["MOUNTPOINT"]),
			})
		}
	}
	return warnings
}
