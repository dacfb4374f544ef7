// pbxctl is an operator CLI that talks straight to the switch control
// endpoint, bypassing the dashboard API. Useful when the API is down or when
// scripting maintenance.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"pbx-console/internal/livecalls"
	"pbx-console/internal/telephony"

	"github.com/spf13/cobra"
)

var (
	baseURL   string
	apiKey    string
	adminPass string
	timeout   time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pbxctl",
		Short: "Inspect and control live calls on the switch",
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", os.Getenv("PROVIDER_BASE_URL"), "switch control endpoint (defaults to PROVIDER_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("PROVIDER_API_KEY"), "x-api-key value (defaults to PROVIDER_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&adminPass, "admin-pass", os.Getenv("PROVIDER_ADMIN_PASS"), "admin password (defaults to PROVIDER_ADMIN_PASS)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 8*time.Second, "per-request timeout")

	activeCmd := &cobra.Command{
		Use:   "active-calls",
		Short: "List every active leg the switch reports",
		RunE:  runActiveCalls,
	}
	activeCmd.Flags().String("account", "", "only show legs for one account code")

	hangupCmd := &cobra.Command{
		Use:   "hangup [channel]",
		Short: "Hang up one channel",
		Args:  cobra.ExactArgs(1),
		RunE:  runHangup,
	}

	transferCmd := &cobra.Command{
		Use:   "transfer [channel] [destination]",
		Short: "Blind-transfer a channel's call to another extension",
		Args:  cobra.ExactArgs(2),
		RunE:  runTransfer,
	}

	rootCmd.AddCommand(activeCmd, hangupCmd, transferCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient() (*telephony.Client, error) {
	return telephony.New(telephony.Options{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		AdminPass: adminPass,
		Timeout:   timeout,
	})
}

func runActiveCalls(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	account, _ := cmd.Flags().GetString("account")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	legs, err := client.FetchActiveCalls(ctx)
	if err != nil {
		return err
	}
	if account != "" {
		legs = livecalls.Reconcile(legs, account, "")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "CHANNEL\tACCOUNT\tEXT\tSTATE\tCALLER\tSECONDS")
	for _, l := range legs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			l.Channel, l.AccountCode, l.Extension, l.State, l.CallerID, l.DurationSeconds)
	}
	w.Flush()

	stats := livecalls.Stats(legs)
	fmt.Printf("\n%d legs (%d ringing, %d talking)\n", stats.Total, stats.Ringing, stats.Talking)

	if dups := livecalls.FindDuplicates(legs); len(dups) > 0 {
		fmt.Println("duplicate extensions:")
		for _, g := range dups {
			fmt.Printf("  %s on %d legs\n", g.Extension, g.Count)
		}
	}
	return nil
}

func runHangup(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Hangup(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("hangup accepted for %s\n", args[0])
	return nil
}

func runTransfer(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Transfer(ctx, args[0], args[1]); err != nil {
		if ext, ok := telephony.IsNoActiveChannel(err); ok {
			return fmt.Errorf("no active channel for extension %s", ext)
		}
		return err
	}
	fmt.Printf("transfer accepted: %s -> %s\n", args[0], args[1])
	return nil
}
