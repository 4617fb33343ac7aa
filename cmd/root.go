package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Bidon15/popsigner/devctl/internal/config"
	"github.com/Bidon15/popsigner/devctl/internal/devnet"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Global flags
	cfgFile     string
	rpcURL      string
	namespace   string
	logLevel    string
	jsonOut     bool
	metricsFile string
)

var (
	v        = viper.New()
	logger   = slog.Default()
	registry = prometheus.NewRegistry()
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "devctl",
	Short: "devctl - impersonate, fund and transfer on a local devnet",
	Long: `devctl drives a local Ethereum test node (anvil or hardhat).

It impersonates accounts without their keys, makes sure they can pay for
gas, hands a token transfer to an external build tool while the account is
impersonated, and lists the contracts of a Foundry deployment.

Configuration (in order of priority):
  1. Command-line flags (--rpc-url, --namespace, ...)
  2. Environment variables (DEVCTL_RPC_URL, DEVCTL_FUNDING_MINIMUM, ...)
  3. Config file (~/.devctl.yaml)

Get started:
  $ devctl config init
  $ devctl fund 0xDeD7... --min "1 ether"
  $ devctl transfer 0xDeD7... --recipient 0x0D3a...`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "devctl version %s\n", Version)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := ExecuteContext(ctx, os.Args[1:])
	stop()
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}

// ExecuteContext runs the root command with args and writes the metrics
// snapshot if one was requested.
func ExecuteContext(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if metricsFile != "" {
		if werr := prometheus.WriteToTextfile(metricsFile, registry); werr != nil && err == nil {
			err = fmt.Errorf("write metrics: %w", werr)
		}
	}
	return err
}

// SetOutput sets the output writers of the root command.
func SetOutput(out, errOut io.Writer) {
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.devctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc-url", "", "node JSON-RPC URL (or DEVCTL_RPC_URL, default "+devnet.DefaultRPCURL+")")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", "", "test RPC namespace: anvil or hardhat (or DEVCTL_NAMESPACE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (or DEVCTL_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write RPC metrics in Prometheus text format to this file")

	rootCmd.AddCommand(versionCmd)
}

// initConfig initializes viper configuration.
func initConfig() {
	v = viper.New()
	config.SetDefaults(v)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
			v.SetConfigType("yaml")
			v.SetConfigName(strings.TrimSuffix(config.FileName, ".yaml"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("DEVCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindPFlag("rpc_url", rootCmd.PersistentFlags().Lookup("rpc-url"))
	_ = v.BindPFlag("namespace", rootCmd.PersistentFlags().Lookup("namespace"))
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Read config file (ignore error if not found)
	if err := v.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "%s could not read %s: %v\n", colorYellow("Warning:"), cfgFile, err)
	}
}

// setupLogging builds the logger from the resolved log level.
func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := parseLevel(v.GetString("log_level"))
	if err != nil {
		return err
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// bindFlags lets the named local flags of cmd override config keys.
// Pairs are given as key, flag, key, flag, ...
func bindFlags(cmd *cobra.Command, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := v.BindPFlag(pairs[i], cmd.Flags().Lookup(pairs[i+1])); err != nil {
			return fmt.Errorf("bind --%s: %w", pairs[i+1], err)
		}
	}
	return nil
}

// loadConfig resolves and validates the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(v)
}

// dialNode connects to the configured node.
func dialNode(ctx context.Context, cfg *config.Config) (*devnet.Client, error) {
	ns, err := devnet.ParseNamespace(cfg.Namespace)
	if err != nil {
		return nil, err
	}
	return devnet.Dial(ctx, cfg.RPCURL,
		devnet.WithNamespace(ns),
		devnet.WithLogger(logger),
		devnet.WithRegisterer(registry),
	)
}

// Output helpers

// printJSON outputs data as formatted JSON.
func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// printError prints an error message.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %s\n", colorRed("Error:"), err.Error())
}

// Terminal colors

func colorRed(s string) string {
	if !isTTY() {
		return s
	}
	return "\033[31m" + s + "\033[0m"
}

func colorGreen(s string) string {
	if !isTTY() {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

func colorYellow(s string) string {
	if !isTTY() {
		return s
	}
	return "\033[33m" + s + "\033[0m"
}

func isTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
