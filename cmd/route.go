package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/byok-router/internal/config"
	"github.com/Davincible/byok-router/internal/endpoint"
	"github.com/Davincible/byok-router/internal/router"
)

var routeCmd = &cobra.Command{
	Use:   "route [endpoint...]",
	Short: "Show how endpoints are routed",
	Long:  `Print the routing decision for each endpoint (all 13 when none are given) under the current configuration.`,
	RunE:  runRoute,
}

func init() {
	routeCmd.Flags().StringP("model", "m", "", `model requested by the call, e.g. "byok:openai:gpt-4o-mini"`)
	routeCmd.Flags().Bool("runtime-off", false, "decide as if the runtime switch were off")
}

func runRoute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	model, _ := cmd.Flags().GetString("model")
	runtimeOff, _ := cmd.Flags().GetBool("runtime-off")

	eps := args
	if len(eps) == 0 {
		eps = endpoint.Paths()
	}

	for _, ep := range eps {
		printRoute(cmd.OutOrStdout(), router.Decide(cfg, ep, router.Model(model), !runtimeOff))
	}
	return nil
}

func printRoute(out io.Writer, r router.Route) {
	var mode string
	switch r.Mode {
	case config.ModeByok:
		mode = color.GreenString("%-8s", r.Mode)
	case config.ModeDisabled:
		mode = color.RedString("%-8s", r.Mode)
	default:
		mode = color.CyanString("%-8s", r.Mode)
	}

	line := fmt.Sprintf("%-32s %s %-18s", r.Endpoint, mode, r.Reason)
	if r.Mode == config.ModeByok {
		if r.Provider == nil {
			line += color.YellowString(" no provider configured")
		} else {
			line += fmt.Sprintf(" %s", router.FormatByokModelID(r.Provider.ID, r.Model))
		}
	}
	fmt.Fprintln(out, line)
}
