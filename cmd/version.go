package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Printf("%s v%s (%s, %s/%s)\n", AppName, Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
