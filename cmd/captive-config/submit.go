package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/captiveconfig/internal/discovery"
	"github.com/muurk/captiveconfig/internal/portal"
	"github.com/muurk/captiveconfig/internal/portalclient"
	"github.com/muurk/captiveconfig/internal/ui"
)

// Submit command flags
var (
	submitURL        string
	submitSSID       string
	submitPassphrase string
	submitAskPass    bool
	submitRetries    int
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Send credentials to a running portal",
	Long: `Submit an SSID and passphrase to a running portal without a browser.

The request is the same form post the config page makes, so the portal
validates it identically. Connection failures are retried while the portal
is still starting up.`,
	Example: `  # From a laptop joined to the configuration access point
  captive-config submit --ssid HomeNet --ask-passphrase

  # Against a --mock portal on this machine
  captive-config submit --url http://127.0.0.1:8080 --ssid CoffeeShop`,
	RunE: runSubmit,
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitURL, "url", "http://"+discovery.DefaultHost+".local", "Portal base URL")
	f.StringVar(&submitSSID, "ssid", "", "Network to join")
	f.StringVar(&submitPassphrase, "passphrase", "", "Network passphrase (visible in the process list; prefer --ask-passphrase)")
	f.BoolVar(&submitAskPass, "ask-passphrase", false, "Prompt for the passphrase")
	f.IntVar(&submitRetries, "retries", portalclient.DefaultMaxRetries, "Retries on connection failure")
	_ = submitCmd.MarkFlagRequired("ssid")

	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	passphrase := submitPassphrase
	if submitAskPass {
		p, err := readPassphrase()
		if err != nil {
			return err
		}
		passphrase = p
	}

	creds := portal.Credentials{SSID: submitSSID, Passphrase: passphrase}
	if err := portal.ValidateCredentials(creds, nil); err != nil {
		return err
	}

	client := portalclient.NewClientWithURL(submitURL)
	client.MaxRetries = submitRetries

	printer := ui.NewPrinter(cmd.OutOrStdout())
	if err := client.Submit(cmd.Context(), creds); err != nil {
		printer.PrintResult(ui.NewFailureResult("Portal did not accept the credentials", err,
			"Check that this machine has joined the configuration access point",
			"Open "+submitURL+" in a browser to see the network list",
		))
		return fmt.Errorf("%w: %v", errReported, err)
	}

	printer.PrintResult(ui.NewSuccessResult("Credentials sent",
		ui.Param{Key: "Portal", Value: submitURL},
		ui.Param{Key: "SSID", Value: creds.SSID},
	))
	return nil
}

// readPassphrase prompts on the terminal without echo, or reads one line
// from stdin when it is not a terminal.
func readPassphrase() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Passphrase: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
