package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Davincible/byok-router/internal/gateway"
	"github.com/Davincible/byok-router/internal/metrics"
	"github.com/Davincible/byok-router/internal/process"
	"github.com/Davincible/byok-router/internal/providers"
	"github.com/Davincible/byok-router/internal/server"
	"github.com/Davincible/byok-router/internal/wire"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start"},
	Short:   "Start the gateway",
	Long:    `Start the gateway in the foreground. The config file is reloaded when it changes.`,
	RunE:    runServe,
}

func init() {
	serveCmd.Flags().Bool("no-watch", false, "do not reload the config file on change")
	serveCmd.Flags().Bool("count-tokens", true, "estimate prompt tokens with tiktoken")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	for _, verr := range cfg.Validate() {
		logger.Warn("Configuration problem", "error", verr)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if noWatch, _ := cmd.Flags().GetBool("no-watch"); !noWatch && cfgMgr.Exists() {
		if err := cfgMgr.Watch(ctx, logger); err != nil {
			logger.Warn("Config hot reload unavailable", "error", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	client := wire.NewClient(nil, logger)
	registry := providers.NewRegistry()
	registry.Initialize(client, logger)

	opts := []gateway.Option{gateway.WithMetrics(rec)}
	if countTokens, _ := cmd.Flags().GetBool("count-tokens"); countTokens {
		opts = append(opts, gateway.WithTokenCounter(gateway.NewTiktokenCounter(logger)))
	}
	gw := gateway.New(cfgMgr, registry, client, logger, opts...)

	procMgr := process.NewManager(baseDir)
	if err := procMgr.WritePID(); err != nil {
		return err
	}
	defer procMgr.CleanupPID()

	color.Green("Starting %s v%s on http://%s:%d", AppName, Version, cfg.Server.Host, cfg.Server.Port)

	srv := server.New(cfgMgr, gw, rec, reg, logger)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
