package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Bidon15/popsigner/devctl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `Commands for managing the devctl configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long: `Write the current configuration (defaults, overridden by flags and
environment) to ~/.devctl.yaml, or to the file given with --config.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := cfgFile
	if configPath == "" {
		configPath = config.FilePath()
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.WriteFile(configPath); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Config file created at %s\n", colorGreen("✓"), configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	redacted := cfg.Redacted()

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, map[string]interface{}{
			"config":      redacted,
			"config_file": v.ConfigFileUsed(),
		})
	}

	if configFile := v.ConfigFileUsed(); configFile != "" {
		fmt.Fprintf(out, "# Config File: %s\n", configFile)
	}
	enc := yaml.NewEncoder(out)
	defer enc.Close()
	return enc.Encode(redacted)
}
