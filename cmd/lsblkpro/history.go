package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sigreer/lsblkpro/internal/config"
	"github.com/sigreer/lsblkpro/internal/db"
	"github.com/sigreer/lsblkpro/internal/logging"
	"github.com/sigreer/lsblkpro/internal/snapshot"
)

var dbPath string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Keep snapshots of the device table over time",
	Long: `Save the current device data into a local SQLite history and render
past snapshots later, e.g. to compare a machine before and after a disk swap.`,
}

var historySaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Collect the current devices and store a snapshot",
	Args:  cobra.NoArgs,
	Run:   runHistorySave,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	Args:  cobra.NoArgs,
	Run:   runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Render a stored snapshot",
	Long: `Render a stored snapshot with the same display flags as the main
command. The id may be shortened to any unique prefix.`,
	Args: cobra.ExactArgs(1),
	Run:  runHistoryShow,
}

var historyRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a stored snapshot",
	Args:  cobra.ExactArgs(1),
	Run:   runHistoryRm,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest snapshots",
	Args:  cobra.NoArgs,
	Run:   runHistoryPrune,
}

func init() {
	historyCmd.PersistentFlags().StringVar(&dbPath, "db", "", "history database (default is history.path from the config)")

	historyCmd.AddCommand(historySaveCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyRmCmd)
	historyCmd.AddCommand(historyPruneCmd)

	historySaveCmd.Flags().String("label", "", "note stored with the snapshot")
	historyListCmd.Flags().Int("limit", 20, "maximum number of snapshots to list")
	historyShowCmd.Flags().String("export", "", "write the snapshot to FILE (.yaml or .cbor) instead of rendering it")
	historyPruneCmd.Flags().Int("keep", 10, "number of snapshots to keep")
}

func openHistory() (*config.Config, *db.DB) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	path := dbPath
	if path == "" {
		path = cfg.History.Path
	}
	database, err := db.New(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	return cfg, database
}

func runHistorySave(cmd *cobra.Command, args []string) {
	cfg, database := openHistory()
	defer database.Close()

	label, _ := cmd.Flags().GetString("label")
	log := logging.New(os.Stderr, debug)

	host, warnings, err := collectHost(cmd.Context(), cfg, log)
	if err != nil {
		database.Close()
		exitOnError(err)
	}

	doc := snapshot.New(host, warnings, hostname(), time.Now())
	id, err := database.SaveSnapshot(doc, label)
	if err != nil {
		database.Close()
		exitOnError(err)
	}
	fmt.Println(id)

	if cfg.History.Keep > 0 {
		removed, err := database.PruneSnapshots(cfg.History.Keep)
		if err != nil {
			log.Warn().Err(err).Msg("pruning history failed")
		} else if removed > 0 {
			log.Debug().Int64("removed", removed).Int("keep", cfg.History.Keep).Msg("pruned history")
		}
	}
}

func runHistoryList(cmd *cobra.Command, args []string) {
	_, database := openHistory()
	defer database.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := database.ListSnapshots(limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying snapshots: %v\n", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Println("No snapshots stored. Run 'lsblkpro history save' to create one.")
		return
	}

	fmt.Printf("%-8s  %-16s  %-15s  %-20s  %7s  %10s  %s\n",
		"ID", "TAKEN", "AGE", "HOST", "DEVICES", "PARTITIONS", "LABEL")
	for _, rec := range records {
		fmt.Printf("%-8s  %-16s  %-15s  %-20s  %7d  %10d  %s\n",
			rec.ID[:8],
			rec.TakenAt.Local().Format("2006-01-02 15:04"),
			humanize.Time(rec.TakenAt),
			rec.Hostname,
			rec.DeviceCount,
			rec.PartitionCount,
			rec.Label,
		)
	}
}

func runHistoryShow(cmd *cobra.Command, args []string) {
	cfg, database := openHistory()
	defer database.Close()

	rec, doc, err := database.GetSnapshot(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading snapshot: %v\n", err)
		os.Exit(1)
	}

	if export, _ := cmd.Flags().GetString("export"); export != "" {
		if err := snapshot.Save(export, doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting snapshot: %v\n", err)
			os.Exit(1)
		}
		return
	}

	host, warnings, err := doc.Host()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in snapshot %s: %v\n", rec.ID, err)
		os.Exit(1)
	}

	fmt.Printf("Snapshot %s of %s taken %s", rec.ID, rec.Hostname, rec.TakenAt.Local().Format(time.RFC1123))
	if rec.Label != "" {
		fmt.Printf(" (%s)", rec.Label)
	}
	fmt.Print("\n\n")

	if err := renderHost(os.Stdout, cfg, host, warnings); err != nil {
		database.Close()
		exitOnError(err)
	}
}

func runHistoryRm(cmd *cobra.Command, args []string) {
	_, database := openHistory()
	defer database.Close()

	if err := database.DeleteSnapshot(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting snapshot: %v\n", err)
		os.Exit(1)
	}
}

func runHistoryPrune(cmd *cobra.Command, args []string) {
	_, database := openHistory()
	defer database.Close()

	keep, _ := cmd.Flags().GetInt("keep")
	removed, err := database.PruneSnapshots(keep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error pruning snapshots: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Removed %d snapshot(s)\n", removed)
}
