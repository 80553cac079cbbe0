// drawerctl drives one shopper's cart drawer against a live storefront.
// Each command performs a single operation and rebuilds the drawer, so the
// tool composes in scripts the way the storefront theme composes clicks.
//
// Commands:
//
//	drawerctl show
//	drawerctl reconcile
//	drawerctl toggle-protection
//	drawerctl add VARIANT[:QTY[:PLAN]]...
//	drawerctl change VARIANT plus|minus|remove
//	drawerctl gift VARIANT
//	drawerctl clear
//	drawerctl watch
//
// The cart token, the checkbox state and the protection opt-out persist in
// the sqlite file given by --state, so consecutive runs act on the same cart.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen = "", "", ""
	colorYellow, colorGray, colorBold = "", "", ""
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s✗ %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "drawerctl",
		Short: "Inspect and drive a storefront cart drawer",
		Long: `drawerctl runs the cart drawer against a storefront's Ajax Cart API.

Every command rebuilds the drawer afterwards: the shipping protection line
and the free gift line are reconciled and the result is printed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.storeURL, "store", os.Getenv("STORE_URL"), "Storefront base URL")
	flags.StringVar(&opts.statePath, "state", "drawerctl.db", "Session state file (sqlite)")
	flags.StringVar(&opts.pagePath, "page", "/", "Storefront page carrying the drawer settings")
	flags.BoolVar(&opts.fingerprint, "fingerprint", false, "Present a browser TLS fingerprint")
	flags.BoolVar(&opts.jsonOut, "json", false, "Print the drawer view as JSON")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log reconciliation steps")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	cmd.PersistentPreRun = func(*cobra.Command, []string) {
		if opts.noColor {
			disableColors()
		}
	}

	cmd.AddCommand(
		showCmd(opts),
		reconcileCmd(opts),
		toggleProtectionCmd(opts),
		addCmd(opts),
		changeCmd(opts),
		giftCmd(opts),
		clearCmd(opts),
		watchCmd(opts),
	)
	return cmd
}
