package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bidon15/popsigner/devctl/internal/devnet"
)

var impersonateCmd = &cobra.Command{
	Use:   "impersonate <address>",
	Short: "Let the node accept unsigned transactions from an address",
	Long: `Ask the node to impersonate an address so transactions "from" it are
accepted without its private key. Stays in effect until stop-impersonating.

Examples:
  devctl impersonate 0xDeD796De6a14E255487191963dEe436c45995813
  devctl impersonate 0xDeD7... --namespace hardhat`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImpersonation(cmd, args[0], true)
	},
}

var stopImpersonatingCmd = &cobra.Command{
	Use:   "stop-impersonating <address>",
	Short: "Revoke impersonation of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImpersonation(cmd, args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(impersonateCmd)
	rootCmd.AddCommand(stopImpersonatingCmd)
}

func runImpersonation(cmd *cobra.Command, rawAddr string, enable bool) error {
	addr, err := devnet.ParseAddress(rawAddr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := contextOrBackground(cmd)
	client, err := dialNode(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	call := client.StopImpersonating
	if enable {
		call = client.Impersonate
	}
	if err := call(ctx, addr); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, map[string]interface{}{
			"address":       addr.Hex(),
			"impersonating": enable,
		})
	}
	if enable {
		fmt.Fprintf(out, "%s Impersonating %s\n", colorGreen("✓"), addr.Hex())
	} else {
		fmt.Fprintf(out, "%s Stopped impersonating %s\n", colorGreen("✓"), addr.Hex())
	}
	return nil
}

// contextOrBackground returns the command context, which is nil when a
// command is run outside Execute.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
