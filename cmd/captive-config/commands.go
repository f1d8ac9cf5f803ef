package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/captiveconfig/internal/config"
	"github.com/muurk/captiveconfig/internal/discovery"
	"github.com/muurk/captiveconfig/internal/portal"
	"github.com/muurk/captiveconfig/internal/ui"
	"github.com/muurk/captiveconfig/internal/wifi"
)

// Scan and discover flags
var (
	scanTimeout     time.Duration
	scanMock        bool
	scanFormat      string
	discoverTimeout time.Duration
	forceInit       bool
)

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 15*time.Second, "Give up on the scan after this long")
	scanCmd.Flags().BoolVar(&scanMock, "mock", false, "Use simulated scan results")
	scanCmd.Flags().StringVar(&scanFormat, "format", "text", "Output format (text, json)")
	scanCmd.Flags().StringVar(&flagInterface, "interface", "", "Wireless interface")

	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", discovery.DefaultScanTimeout, "How long to listen for announcements")

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(configCmd)
}

// scanCmd runs one radio scan and prints the networks the portal would list
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan and list the networks the portal would offer",
	Long: `Run one Wi-Fi scan and print the networks in the order the config page
lists them: strongest signal first, limited to catalog_capacity entries.`,
	Example: `  sudo captive-config scan
  sudo captive-config scan --interface wlan1 --format json
  captive-config scan --mock`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("interface") {
		cfg.Interface = flagInterface
	}

	var scanner portal.Scanner
	if scanMock {
		scanner = wifi.NewMockScanner(mockPolls, wifi.DemoNetworks()...)
	} else {
		iw := wifi.NewIWScanner(cfg.Interface)
		if cfg.IWPath != "" {
			iw.IWPath = cfg.IWPath
		}
		defer func() { _ = iw.Close() }()
		scanner = iw
	}

	aps, err := scanOnce(cmd.Context(), scanner, scanTimeout)
	if err != nil {
		return err
	}

	catalog := portal.NewCatalog(cfg.CatalogCapacity)
	dropped := catalog.Fill(aps)

	if scanFormat == "json" {
		data, err := json.MarshalIndent(catalog.All(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintCatalog(catalog.All())
	if dropped > 0 {
		printer.Newline()
		printer.Println(fmt.Sprintf("  %d weaker network(s) not listed (catalog_capacity %d)", dropped, catalog.Cap()))
	}
	return nil
}

// scanOnce starts a scan and polls it until it finishes or the timeout passes.
func scanOnce(ctx context.Context, scanner portal.Scanner, timeout time.Duration) ([]wifi.AccessPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := scanner.StartScan(); err != nil {
		return nil, portal.NewScanError("scan did not start", err)
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		done, err := scanner.ScanComplete()
		if done {
			if err != nil {
				return nil, portal.NewScanError("scan did not complete", err)
			}
			break
		}
		select {
		case <-ctx.Done():
			return nil, portal.NewScanError("scan timed out", ctx.Err())
		case <-ticker.C:
		}
	}

	aps := make([]wifi.AccessPoint, 0, scanner.ResultCount())
	for i := 0; i < scanner.ResultCount(); i++ {
		if ap, ok := scanner.Result(i); ok {
			aps = append(aps, ap)
		}
	}
	return aps, nil
}

// discoverCmd browses mDNS for running portals
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find running portals on the local network",
	Long: `Browse mDNS for captive-config portals. Run this from a machine that has
joined a device's configuration access point to find the config page when
the OS did not open it automatically.`,
	Example: `  captive-config discover
  captive-config discover --timeout 10s`,
	RunE: runDiscover,
}

func runDiscover(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Browsing for portals (timeout: %s)...\n\n", discoverTimeout)

	scanner := discovery.NewScanner()
	scanner.Timeout = discoverTimeout
	portals, err := scanner.ScanForPortals(cmd.Context())
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if len(portals) == 0 {
		fmt.Fprintln(out, "No portals found.")
		fmt.Fprintln(out, "\nTroubleshooting:")
		fmt.Fprintln(out, "  - Join the device's configuration access point first")
		fmt.Fprintln(out, "  - Check that the portal runs without --no-advertise")
		fmt.Fprintln(out, "  - Try http://"+discovery.DefaultHost+".local/ directly")
		return nil
	}

	fmt.Fprintf(out, "Found %d portal(s):\n\n", len(portals))
	for i, p := range portals {
		fmt.Fprintf(out, "%d. %s\n", i+1, p.Instance)
		fmt.Fprintf(out, "   URL:     %s\n", p.URL())
		if p.SSID != "" {
			fmt.Fprintf(out, "   SSID:    %s\n", p.SSID)
		}
		if p.Version != "" {
			fmt.Fprintf(out, "   Version: %s\n", p.Version)
		}
		fmt.Fprintln(out)
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			p, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			path = p
		}

		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("cannot access %s: %w", path, err)
		}

		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)
		return nil
	},
}
