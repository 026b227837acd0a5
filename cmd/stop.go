package cmd

import (
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/byok-router/internal/process"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the gateway",
	Long:  `Stop a gateway started with serve, using its PID file.`,
	RunE:  runStop,
}

func runStop(cmd *cobra.Command, _ []string) error {
	color.Yellow("Stopping %s...", AppName)

	procMgr := process.NewManager(baseDir)

	if !procMgr.IsRunning() {
		color.Yellow("Gateway is not running")
		return nil
	}

	if err := procMgr.Stop(10 * time.Second); err != nil {
		return err
	}

	color.Green("Gateway stopped successfully")
	return nil
}
