package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/byok-router/internal/config"
	"github.com/Davincible/byok-router/internal/providers"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the gateway configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Write a configuration file with the default routing table and one provider entered at the prompt.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration with secrets masked.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors that would make routing fail.`,
	RunE:  runConfigValidate,
}

func init() {
	configInitCmd.Flags().Bool("defaults", false, "write the defaults without prompting")
	configInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing configuration")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if cfgMgr.Exists() && !force {
		return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", cfgMgr.GetPath())
	}

	cfg := config.Default()

	if useDefaults, _ := cmd.Flags().GetBool("defaults"); !useDefaults {
		color.Blue("BYOK Router Configuration Setup")
		color.Yellow("Follow the prompts to configure your LLM provider.")

		provider, apiKey, err := promptProvider(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		cfg.Providers = []config.Provider{provider}
		cfg.Routing.DefaultProviderID = provider.ID
		cfg.Server.APIKey = apiKey
	}

	if err := cfgMgr.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	color.Green("Configuration saved successfully to: %s", cfgMgr.GetPath())
	color.Cyan("You can now start the gateway with: %s serve", AppName)

	return nil
}

// promptProvider reads one provider definition and the optional gateway key.
func promptProvider(in io.Reader, out io.Writer) (config.Provider, string, error) {
	reader := bufio.NewReader(in)
	ask := func(label string) string {
		fmt.Fprint(out, label)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}

	id := ask("\nProvider ID (e.g., openai, deepseek, claude): ")
	baseURL := ask("API Base URL (e.g., https://api.openai.com/v1): ")
	apiKey := ask("API Key: ")
	models := strings.Split(ask("Models (comma separated): "), ",")
	gatewayKey := ask("Gateway API Key (optional, for authentication): ")

	if id == "" {
		return config.Provider{}, "", fmt.Errorf("provider id is required")
	}

	providerType, err := providers.TypeForBaseURL(baseURL)
	if err != nil {
		return config.Provider{}, "", err
	}

	p := config.Provider{
		ID:      id,
		Type:    providerType,
		BaseURL: baseURL,
		APIKey:  apiKey,
	}
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			p.Models = append(p.Models, m)
		}
	}

	fmt.Fprintf(out, "Detected provider type: %s\n", providerType)
	return p, gatewayKey, nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("No configuration found. Run '%s config init' to create one.", AppName)
		return nil
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out := cmd.OutOrStdout()

	color.Blue("Current Configuration:")
	fmt.Fprintf(out, "  %-15s: %v\n", "Enabled", cfg.Enabled)
	fmt.Fprintf(out, "  %-15s: %s:%d\n", "Listen", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(out, "  %-15s: %s\n", "API Key", maskString(cfg.Server.APIKey))
	fmt.Fprintf(out, "  %-15s: %s\n", "Official", cfg.Official.CompletionURL)
	fmt.Fprintf(out, "  %-15s: %s\n", "Official Token", maskString(cfg.Official.APIToken))
	fmt.Fprintf(out, "  %-15s: %dms\n", "Upstream", cfg.Timeouts.UpstreamMs)
	fmt.Fprintf(out, "  %-15s: %s\n", "Config Path", cfgMgr.GetPath())

	fmt.Fprintln(out, "\nProviders:")
	for _, p := range cfg.Providers {
		fmt.Fprintf(out, "  - ID: %s (%s)\n", p.ID, p.Type)
		fmt.Fprintf(out, "    Base URL: %s\n", p.BaseURL)
		fmt.Fprintf(out, "    API Key: %s\n", maskString(p.APIKey))
		fmt.Fprintf(out, "    Models: %v (default %s)\n", p.Models, p.DefaultModel)
	}

	fmt.Fprintln(out, "\nRouting:")
	fmt.Fprintf(out, "  %-32s: %s\n", "default", cfg.Routing.DefaultMode)
	if cfg.Routing.DefaultProviderID != "" {
		fmt.Fprintf(out, "  %-32s: %s\n", "default provider", cfg.Routing.DefaultProviderID)
	}

	eps := make([]string, 0, len(cfg.Routing.Rules))
	for ep := range cfg.Routing.Rules {
		eps = append(eps, ep)
	}
	sort.Strings(eps)
	for _, ep := range eps {
		fmt.Fprintf(out, "  %-32s: %s\n", ep, describeRule(cfg.Routing.Rules[ep]))
	}

	fmt.Fprintf(out, "\nTelemetry stubbed: %s\n", strings.Join(cfg.Telemetry.DisabledEndpoints, ", "))
	return nil
}

func describeRule(rule config.RoutingRule) string {
	parts := []string{string(rule.Mode)}
	if rule.Mode == "" {
		parts[0] = "(default)"
	}
	if rule.ProviderID != "" {
		parts = append(parts, "provider="+rule.ProviderID)
	}
	if rule.Model != "" {
		parts = append(parts, "model="+rule.Model)
	}
	return strings.Join(parts, " ")
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return fmt.Errorf("no configuration found at %s", cfgMgr.GetPath())
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	errs := cfg.Validate()
	if len(cfg.Providers) == 0 {
		errs = append(errs, fmt.Errorf("no providers configured"))
	}

	if len(errs) > 0 {
		color.Red("Configuration validation failed:")
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "  - %s\n", err)
		}
		return fmt.Errorf("configuration validation failed")
	}

	color.Green("Configuration is valid!")
	return nil
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
