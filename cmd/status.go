package cmd

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/byok-router/internal/middleware"
	"github.com/Davincible/byok-router/internal/process"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway status",
	Long:  `Display whether the gateway is running and what its health endpoint reports.`,
	RunE:  runStatus,
}

type healthStatus struct {
	Status         string `json:"status"`
	Enabled        bool   `json:"enabled"`
	RuntimeEnabled bool   `json:"runtime_enabled"`
	Providers      int    `json:"providers"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	procMgr := process.NewManager(baseDir)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))

	color.Blue("Status for %s:", AppName)
	fmt.Printf("  %-15s: %v\n", "Running", procMgr.IsRunning())
	fmt.Printf("  %-15s: %d\n", "PID", procMgr.ReadPID())
	fmt.Printf("  %-15s: %s\n", "Endpoint", "http://"+addr)
	fmt.Printf("  %-15s: %s\n", "Official", cfg.Official.CompletionURL)
	fmt.Printf("  %-15s: %d\n", "Providers", len(cfg.Providers))
	fmt.Printf("  %-15s: %s\n", "Config Path", cfgMgr.GetPath())
	fmt.Printf("  %-15s: v%s\n", "Version", Version)

	health, err := fetchHealth(cmd, "http://"+addr+"/health", cfg.Server.APIKey)
	if err != nil {
		color.Yellow("  Health check failed: %v", err)
		return nil
	}

	fmt.Printf("  %-15s: %s\n", "Health", health.Status)
	fmt.Printf("  %-15s: %v\n", "BYOK Enabled", health.Enabled)
	fmt.Printf("  %-15s: %v\n", "Runtime", onOff(health.RuntimeEnabled))
	return nil
}

func fetchHealth(cmd *cobra.Command, url, apiKey string) (*healthStatus, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create health request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set(middleware.APIKeyHeader, apiKey)
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}

	var out healthStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &out, nil
}

func onOff(on bool) string {
	if on {
		return color.GreenString("on")
	}
	return color.RedString("off (all calls go to the official backend)")
}
