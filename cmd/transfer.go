package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bidon15/popsigner/devctl/internal/devnet"
	"github.com/Bidon15/popsigner/devctl/internal/funding"
	"github.com/Bidon15/popsigner/devctl/internal/impersonation"
	"github.com/Bidon15/popsigner/devctl/internal/transfer"
	"github.com/Bidon15/popsigner/devctl/internal/workflow"
)

var transferCmd = &cobra.Command{
	Use:   "transfer <address>",
	Short: "Run the transfer tool as an impersonated address",
	Long: `Impersonate an address, make sure it can pay for gas, then run the
configured transfer tool (default "make transfer") with the address bound
to IMPERSONATED and the recipient to RECIPIENT. Impersonation is always
revoked afterwards, including when funding or the tool fails.

Parameters are passed as KEY=value arguments and as environment variables.

Examples:
  devctl transfer 0xDeD7... --recipient 0x0D3a...
  devctl transfer 0xDeD7... --recipient 0x0D3a... --param TOKEN=USDC --param AMOUNT=100
  devctl transfer 0xDeD7... --min "0.1 ether" --strategy transfer`,
	Args: cobra.ExactArgs(1),
	RunE: runTransfer,
}

func init() {
	transferCmd.Flags().String("recipient", "", "recipient address (or transfer.recipient)")
	transferCmd.Flags().StringArray("param", nil, "extra KEY=value parameter for the tool (repeatable)")
	transferCmd.Flags().String("min", "", "minimum balance before the tool runs (default \"1 ether\")")
	transferCmd.Flags().String("strategy", "", "funding strategy: direct or transfer (default direct)")
	transferCmd.Flags().String("dir", "", "working directory of the tool")
	rootCmd.AddCommand(transferCmd)
}

func runTransfer(cmd *cobra.Command, args []string) error {
	addr, err := devnet.ParseAddress(args[0])
	if err != nil {
		return err
	}
	if err := bindFlags(cmd,
		"transfer.recipient", "recipient",
		"transfer.dir", "dir",
		"funding.minimum", "min",
		"funding.strategy", "strategy",
	); err != nil {
		return err
	}
	rawParams, err := cmd.Flags().GetStringArray("param")
	if err != nil {
		return err
	}
	params, err := transfer.ParseParams(rawParams)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	minimum, err := cfg.MinimumWei()
	if err != nil {
		return err
	}
	recipient, err := cfg.Recipient()
	if err != nil {
		return err
	}
	funderCfg, err := cfg.FunderConfig()
	if err != nil {
		return err
	}
	funderCfg.Logger = logger

	ctx := contextOrBackground(cmd)
	client, err := dialNode(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	funder, err := funding.NewFunder(client, funderCfg)
	if err != nil {
		return err
	}
	// Keep stdout parseable when JSON output is requested.
	toolOut := cmd.OutOrStdout()
	if jsonOut {
		toolOut = cmd.ErrOrStderr()
	}
	invoker, err := transfer.NewInvoker(transfer.Config{
		Command:      cfg.Transfer.Command,
		AddressKey:   cfg.Transfer.AddressKey,
		RecipientKey: cfg.Transfer.RecipientKey,
		Dir:          cfg.Transfer.Dir,
		Stdout:       toolOut,
		Stderr:       cmd.ErrOrStderr(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	session := impersonation.New(client, addr, logger)

	wf := workflow.New(session, funder, invoker, logger)
	if err := wf.Run(ctx, workflow.Request{
		Minimum:   minimum,
		Recipient: recipient,
		Params:    params,
	}); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, map[string]interface{}{
			"address": addr.Hex(),
			"session": session.ID().String(),
			"status":  "completed",
		})
	}
	fmt.Fprintf(out, "%s Transfer as %s completed\n", colorGreen("✓"), addr.Hex())
	return nil
}
