package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Bidon15/popsigner/devctl/internal/manifest"
)

var addressesCmd = &cobra.Command{
	Use:   "addresses",
	Short: "List contracts deployed by a Foundry broadcast",
	Long: `Read a Foundry broadcast file and print each deployed contract once,
with the address of its first deployment.

The file is either given with --file or located as
<root>/broadcast/<script>/<chain-id>/run-latest.json.

Examples:
  devctl addresses --file broadcast/Deploy.s.sol/31337/run-latest.json
  devctl addresses --script Deploy.Goerli.s.sol --chain-id 5
  devctl addresses --script Deploy.s.sol --chain-id 31337 --output yaml`,
	Args: cobra.NoArgs,
	RunE: runAddresses,
}

func init() {
	addressesCmd.Flags().String("file", "", "path to a broadcast file")
	addressesCmd.Flags().String("root", "", "Foundry project root (default \".\")")
	addressesCmd.Flags().String("script", "", "deployment script name, e.g. Deploy.s.sol")
	addressesCmd.Flags().Uint64("chain-id", 0, "chain id of the broadcast")
	addressesCmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(addressesCmd)
}

func runAddresses(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd,
		"manifest.root", "root",
		"manifest.script", "script",
		"manifest.chain_id", "chain-id",
	); err != nil {
		return err
	}
	file, _ := cmd.Flags().GetString("file")
	format, _ := cmd.Flags().GetString("output")
	if jsonOut {
		format = "json"
	}

	if file == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m := cfg.Manifest
		if m.Script == "" || m.ChainID == 0 {
			return fmt.Errorf("either --file or both --script and --chain-id are required")
		}
		file = manifest.Path(m.Root, m.Script, m.ChainID)
	}

	broadcast, err := manifest.Load(file)
	if err != nil {
		return err
	}
	contracts := broadcast.Contracts()

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return printJSON(out, contracts)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(contracts)
	case "table":
		return manifest.WriteTable(out, contracts)
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}
