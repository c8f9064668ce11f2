package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sigreer/lsblkpro/internal/collector"
	"github.com/sigreer/lsblkpro/internal/config"
	"github.com/sigreer/lsblkpro/internal/filter"
	"github.com/sigreer/lsblkpro/internal/logging"
	"github.com/sigreer/lsblkpro/internal/model"
	"github.com/sigreer/lsblkpro/internal/order"
	"github.com/sigreer/lsblkpro/internal/reconcile"
	"github.com/sigreer/lsblkpro/internal/snapshot"
	"github.com/sigreer/lsblkpro/internal/table"
)

// displayOptions are the flags shared by the root command and history show
type displayOptions struct {
	onlyDevices bool
	include     []string
	exclude     []string
	sorts       []string
	reverse     bool
	filters     []string
	highlight   string
	allDevices  bool
	allColumns  bool
	ascii       bool
}

const progName = "lsblkpro"

var (
	cfgFile string
	debug   bool
	display displayOptions

	storeData string
	loadData  string
)

var rootCmd = &cobra.Command{
	Use:   progName,
	Short: "List block devices with sysfs, lsblk, /dev/disk and ZFS data combined",
	Long: `lsblkpro lists every block device and partition in one table, merging
the kernel's sysfs attributes, lsblk output, /dev/disk/by-* aliases and
zpool status topology.

Columns are chosen to fit the terminal: fields that are the same for every
row are summarised above the table, aliases that repeat another field are
elided, and whatever does not fit is listed as overflowing.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runRoot(cmd.Context()))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/lsblkpro/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log collector traces to stderr")

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&display.onlyDevices, "only-devices", "d", false, "show only devices (not partitions)")
	pf.StringArrayVarP(&display.include, "include", "i", nil, "include these fields in the output")
	pf.StringArrayVarP(&display.exclude, "exclude", "e", nil, "exclude these fields from the output")
	pf.StringArrayVarP(&display.sorts, "sort", "x", nil, "sort devices by field(s); implies -i")
	pf.BoolVarP(&display.reverse, "reverse", "r", false, "reverse the device order")
	pf.StringArrayVarP(&display.filters, "where", "w", nil, "filters e.g. NAME=sdc, FSTYPE=~^ext, size>4GB")
	pf.StringVarP(&display.highlight, "highlight", "g", "", "highlight entries by a field")
	pf.BoolVarP(&display.allDevices, "all-devices", "a", false, "include ram* and loop* devices, and partitions of zpool drives")
	pf.BoolVarP(&display.allColumns, "all-columns", "A", false, "include all columns, appropriate to pipe to `less -S`")
	pf.BoolVar(&display.ascii, "ascii", false, "use ASCII characters for tree formatting")

	rootCmd.Flags().StringVar(&storeData, "store-data", "", "save the collected data to FILE (.yaml or .cbor) and exit")
	rootCmd.Flags().StringVar(&loadData, "load-data", "", "render data saved with --store-data instead of reading the system")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func runRoot(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(os.Stderr, debug)

	var host *model.Host
	var warnings []model.Warning
	if loadData != "" {
		doc, err := snapshot.Load(loadData)
		if err != nil {
			return err
		}
		if host, warnings, err = doc.Host(); err != nil {
			return fmt.Errorf("%s: %w", loadData, err)
		}
		log.Debug().Str("file", loadData).Str("host", doc.Hostname).Time("taken_at", doc.TakenAt).Msg("loaded snapshot")
	} else {
		if host, warnings, err = collectHost(ctx, cfg, log); err != nil {
			return err
		}
	}

	if storeData != "" {
		doc := snapshot.New(host, warnings, hostname(), time.Now())
		if err := snapshot.Save(storeData, doc); err != nil {
			return err
		}
		log.Debug().Str("file", storeData).Int("devices", len(doc.Devices)).Msg("stored snapshot")
		return nil
	}

	return renderHost(os.Stdout, cfg, host, warnings)
}

// collectHost reads the live system and reconciles it
func collectHost(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*model.Host, []model.Warning, error) {
	if runtime.GOOS != "linux" {
		return nil, nil, errors.New("Linux is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	src, err := collector.CollectSources(ctx, cfg.CollectorOptions(display.allDevices), log)
	if err != nil {
		return nil, nil, err
	}
	host, warnings, err := reconcile.Reconcile(src)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		log.Debug().Str("kind", string(w.Kind)).Str("subject", w.Subject).Msg(w.Message)
	}
	return host, warnings, nil
}

// renderHost orders, filters, plans and prints the table
func renderHost(w io.Writer, cfg *config.Config, host *model.Host, warnings []model.Warning) error {
	view := mergeDisplay(cfg.Display, display)

	preds, err := filter.Compile(view.filters, filter.DefaultEnv())
	if err != nil {
		return err
	}

	lookup := func(d *model.Device, key string) (string, bool) {
		return table.NewRow(d).Lookup(key)
	}
	devices := order.Devices(host, view.sorts, view.reverse, lookup)

	rows := table.BuildRows(devices, table.RowOptions{
		OnlyDevices: view.onlyDevices,
		AllDevices:  view.allDevices,
	})
	rows = filter.Apply(preds, rows)

	glyphs := table.UnicodeGlyphs
	if view.ascii || !utf8Locale() {
		glyphs = table.ASCIIGlyphs
	}
	renderer := table.NewRenderer(table.RenderConfig{
		Glyphs:    glyphs,
		Highlight: view.highlight,
		Color:     colorEnabled(cfg.Display.Color),
	})
	renderer.Decorate(rows)

	width := 0
	if !view.allColumns {
		width = terminalWidth()
	}
	plan := table.PlanColumns(rows, table.PlanOptions{
		Include: view.include,
		Exclude: view.exclude,
		Width:   width,
	})

	return renderer.Render(w, rows, plan, table.Banners{
		Filters:          filter.Describe(preds),
		MissingFromLsblk: host.MissingFromLsblk,
		Warnings:         append(warnings, table.Warnings(rows)...),
	})
}

// mergeDisplay layers the command line over the config file. Lists are
// appended, sort keys and the highlight field are replaced, and sort keys
// are always shown.
func mergeDisplay(cfg config.Display, flags displayOptions) displayOptions {
	view := flags
	view.include = append(append([]string(nil), cfg.Include...), flags.include...)
	view.exclude = append(append([]string(nil), cfg.Exclude...), flags.exclude...)
	if len(view.sorts) == 0 {
		view.sorts = cfg.Sort
	}
	if view.highlight == "" {
		view.highlight = cfg.Highlight
	}
	view.ascii = flags.ascii || cfg.ASCII
	view.include = append(view.include, view.sorts...)
	return view
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: fatal error: %v\n", progName, err)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
