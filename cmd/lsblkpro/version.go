package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sigreer/lsblkpro/internal/snapshot"
	"github.com/sigreer/lsblkpro/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lsblkpro %s (snapshot schema v%d, %s/%s)\n",
			version.Version, snapshot.Version, runtime.GOOS, runtime.GOARCH)
	},
}
