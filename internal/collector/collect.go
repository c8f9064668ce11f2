package collector

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sigreer/lsblkpro/internal/model"
	"github.com/sigreer/lsblkpro/internal/zfs"
)

// Options controls where and how the raw sources are read
type Options struct {
	SysRoot   string
	DevRoot   string
	LsblkPath string

	// UdevRoot fills in alias kinds missing from /dev/disk; empty skips it
	UdevRoot string

	// All includes ram and loop devices
	All bool

	// ZpoolCommand is the argv for zpool status; empty disables ZFS lookups
	ZpoolCommand []string
}

// DefaultOptions reads the live system
func DefaultOptions() Options {
	return Options{
		SysRoot:      DefaultSysRoot,
		DevRoot:      DefaultDevRoot,
		LsblkPath:    "lsblk",
		UdevRoot:     DefaultUdevRoot,
		ZpoolCommand: DefaultZpoolCommand,
	}
}

// CollectSources gathers every raw source sequentially. sysfs, lsblk and
// /dev/disk failures are fatal; zpool failures are recorded in ZPoolErr.
func CollectSources(ctx context.Context, opts Options, log zerolog.Logger) (*model.Sources, error) {
	src := &model.Sources{}

	var err error
	src.Sysfs, err = WalkSysfs(opts.SysRoot, opts.All)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("records", len(src.Sysfs)).Str("root", opts.SysRoot).Msg("walked sysfs")

	lsblk, err := RunLsblk(ctx, opts.LsblkPath, opts.All)
	if err != nil {
		return nil, err
	}
	src.Lsblk = filterLsblk(lsblk, opts.All)
	log.Debug().Int("records", len(src.Lsblk)).Int("hidden", len(lsblk)-len(src.Lsblk)).Msg("read lsblk")

	aliases, err := ReadDiskAliases(opts.DevRoot)
	if err != nil {
		return nil, err
	}
	if opts.UdevRoot != "" {
		udev, err := ReadUdevAliases(opts.UdevRoot, src.Sysfs)
		if err != nil {
			return nil, err
		}
		if added := mergeMissingKinds(aliases, udev); len(added) > 0 {
			log.Debug().Strs("kinds", added).Msg("aliases taken from the udev database")
		}
	}
	src.Aliases = filterAliases(aliases, opts.All)
	log.Debug().Int("kinds", len(src.Aliases)).Msg("read /dev/disk aliases")

	if len(opts.ZpoolCommand) == 0 {
		return src, nil
	}
	status, err := ZpoolStatus(ctx, opts.ZpoolCommand)
	if err != nil {
		log.Debug().Err(err).Msg("zpool status unavailable")
		src.ZPoolErr = err
		return src, nil
	}
	src.ZPaths, err = zfs.ParseStatusPaths(status)
	if err != nil {
		src.ZPoolErr = fmt.Errorf("parsing zpool status: %w", err)
		src.ZPaths = nil
		return src, nil
	}
	log.Debug().Int("leaves", len(src.ZPaths)).Msg("parsed zpool status")

	return src, nil
}

// filterLsblk drops the records for devices the sysfs walk skipped so the
// strict reconciliation only sees one device universe
func filterLsblk(records []model.LsblkRecord, all bool) []model.LsblkRecord {
	if all {
		return records
	}
	var kept []model.LsblkRecord
	for _, rec := range records {
		if HiddenByDefault(rec.KernelName()) || HiddenByDefault(rec["PKNAME"]) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

func filterAliases(aliases model.AliasRecords, all bool) model.AliasRecords {
	if all {
		return aliases
	}
	kept := make(model.AliasRecords, len(aliases))
	for kind, links := range aliases {
		for link, target := range links {
			if HiddenByDefault(target) || isHiddenPartition(target) {
				continue
			}
			if kept[kind] == nil {
				kept[kind] = make(map[string]string)
			}
			kept[kind][link] = target
		}
	}
	return kept
}

// isHiddenPartition matches partitions of loop devices such as loop0p1
func isHiddenPartition(name string) bool {
	for i := len(name) - 1; i > 0; i-- {
		if name[i] == 'p' && HiddenByDefault(name[:i]) {
			return true
		}
	}
	return false
}
