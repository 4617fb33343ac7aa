package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bidon15/popsigner/devctl/internal/devnet"
	"github.com/Bidon15/popsigner/devctl/internal/funding"
)

var fundCmd = &cobra.Command{
	Use:   "fund <address>",
	Short: "Make sure an address holds a minimum balance",
	Long: `Top up an address so it holds at least the minimum balance. Nothing is
changed if the balance is already sufficient.

Strategies:
  direct    overwrite the balance with the node's setBalance extension
  transfer  send the shortfall from the funding key (funding.key)

Examples:
  devctl fund 0xDeD796De6a14E255487191963dEe436c45995813
  devctl fund 0xDeD7... --min "2.5 ether"
  devctl fund 0xDeD7... --min 1000000 --strategy transfer`,
	Args: cobra.ExactArgs(1),
	RunE: runFund,
}

func init() {
	fundCmd.Flags().String("min", "", "minimum balance, e.g. 1000, \"20 gwei\", \"1 ether\" (default \"1 ether\")")
	fundCmd.Flags().String("strategy", "", "funding strategy: direct or transfer (default direct)")
	rootCmd.AddCommand(fundCmd)
}

func runFund(cmd *cobra.Command, args []string) error {
	addr, err := devnet.ParseAddress(args[0])
	if err != nil {
		return err
	}
	if err := bindFlags(cmd, "funding.minimum", "min", "funding.strategy", "strategy"); err != nil {
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
	if err := funder.EnsureFunded(ctx, addr, minimum); err != nil {
		return err
	}

	balance, err := client.BalanceAt(ctx, addr)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, map[string]interface{}{
			"address":  addr.Hex(),
			"balance":  balance.String(),
			"minimum":  minimum.String(),
			"strategy": funder.Strategy(),
		})
	}
	fmt.Fprintf(out, "%s %s holds %s ETH (minimum %s ETH)\n",
		colorGreen("✓"), addr.Hex(), funding.FormatEther(balance), funding.FormatEther(minimum))
	return nil
}
