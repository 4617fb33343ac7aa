// Package config holds the devctl configuration model.
package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Bidon15/popsigner/devctl/internal/devnet"
	"github.com/Bidon15/popsigner/devctl/internal/funding"
	"github.com/Bidon15/popsigner/devctl/internal/transfer"
)

// Defaults.
const (
	DefaultMinimum  = "1 ether"
	DefaultLogLevel = "info"
)

// Config is the full devctl configuration.
type Config struct {
	RPCURL    string `mapstructure:"rpc_url" json:"rpc_url" yaml:"rpc_url" validate:"required,url"`
	Namespace string `mapstructure:"namespace" json:"namespace" yaml:"namespace" validate:"oneof=anvil hardhat"`
	LogLevel  string `mapstructure:"log_level" json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`

	Funding  FundingConfig  `mapstructure:"funding" json:"funding" yaml:"funding"`
	Transfer TransferConfig `mapstructure:"transfer" json:"transfer" yaml:"transfer"`
	Manifest ManifestConfig `mapstructure:"manifest" json:"manifest" yaml:"manifest"`
}

// FundingConfig configures how impersonated accounts are topped up.
type FundingConfig struct {
	Strategy string `mapstructure:"strategy" json:"strategy" yaml:"strategy" validate:"oneof=direct transfer"`
	Minimum  string `mapstructure:"minimum" json:"minimum" yaml:"minimum" validate:"required,amount"`

	// Key is the hex private key of the funding account, used by the
	// transfer strategy only.
	Key      string `mapstructure:"key" json:"key,omitempty" yaml:"key,omitempty" validate:"required_if=Strategy transfer,privkey"`
	GasLimit uint64 `mapstructure:"gas_limit" json:"gas_limit" yaml:"gas_limit" validate:"gte=21000"`
	GasPrice string `mapstructure:"gas_price" json:"gas_price" yaml:"gas_price" validate:"required,amount"`
}

// TransferConfig configures the external transfer tool.
type TransferConfig struct {
	Command      []string `mapstructure:"command" json:"command" yaml:"command" validate:"min=1,dive,required"`
	AddressKey   string   `mapstructure:"address_key" json:"address_key" yaml:"address_key" validate:"required,envkey"`
	RecipientKey string   `mapstructure:"recipient_key" json:"recipient_key" yaml:"recipient_key" validate:"required,envkey"`
	Recipient    string   `mapstructure:"recipient" json:"recipient,omitempty" yaml:"recipient,omitempty" validate:"omitempty,eth_addr"`
	Dir          string   `mapstructure:"dir" json:"dir,omitempty" yaml:"dir,omitempty"`
}

// ManifestConfig locates the Foundry broadcast file of a deployment.
type ManifestConfig struct {
	Root    string `mapstructure:"root" json:"root" yaml:"root"`
	Script  string `mapstructure:"script" json:"script,omitempty" yaml:"script,omitempty"`
	ChainID uint64 `mapstructure:"chain_id" json:"chain_id,omitempty" yaml:"chain_id,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		RPCURL:    devnet.DefaultRPCURL,
		Namespace: string(devnet.NamespaceAnvil),
		LogLevel:  DefaultLogLevel,
		Funding: FundingConfig{
			Strategy: string(funding.StrategyDirect),
			Minimum:  DefaultMinimum,
			GasLimit: funding.DefaultGasLimit,
			GasPrice: "1 gwei",
		},
		Transfer: TransferConfig{
			Command:      append([]string{}, transfer.DefaultCommand...),
			AddressKey:   transfer.DefaultAddressKey,
			RecipientKey: transfer.DefaultRecipientKey,
		},
		Manifest: ManifestConfig{
			Root: ".",
		},
	}
}

// SetDefaults registers every key with its default so that environment
// variables are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("rpc_url", d.RPCURL)
	v.SetDefault("namespace", d.Namespace)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("funding.strategy", d.Funding.Strategy)
	v.SetDefault("funding.minimum", d.Funding.Minimum)
	v.SetDefault("funding.key", "")
	v.SetDefault("funding.gas_limit", d.Funding.GasLimit)
	v.SetDefault("funding.gas_price", d.Funding.GasPrice)
	v.SetDefault("transfer.command", d.Transfer.Command)
	v.SetDefault("transfer.address_key", d.Transfer.AddressKey)
	v.SetDefault("transfer.recipient_key", d.Transfer.RecipientKey)
	v.SetDefault("transfer.recipient", "")
	v.SetDefault("transfer.dir", "")
	v.SetDefault("manifest.root", d.Manifest.Root)
	v.SetDefault("manifest.script", "")
	v.SetDefault("manifest.chain_id", 0)
}

// Load decodes the configuration held by v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", formatValidationErrors(err))
	}
	return nil
}

// MinimumWei returns the minimum balance in wei.
func (c *Config) MinimumWei() (*big.Int, error) {
	return funding.ParseAmount(c.Funding.Minimum)
}

// FunderConfig converts the funding section for funding.NewFunder.
func (c *Config) FunderConfig() (funding.Config, error) {
	strategy, err := funding.ParseStrategy(c.Funding.Strategy)
	if err != nil {
		return funding.Config{}, err
	}
	gasPrice, err := funding.ParseAmount(c.Funding.GasPrice)
	if err != nil {
		return funding.Config{}, fmt.Errorf("gas_price: %w", err)
	}

	out := funding.Config{
		Strategy: strategy,
		GasLimit: c.Funding.GasLimit,
		GasPrice: gasPrice,
	}
	if c.Funding.Key != "" {
		key, err := ParsePrivateKey(c.Funding.Key)
		if err != nil {
			return funding.Config{}, err
		}
		out.FundingKey = key
	}
	return out, nil
}

// Recipient returns the configured recipient, if any.
func (c *Config) Recipient() (*common.Address, error) {
	if c.Transfer.Recipient == "" {
		return nil, nil
	}
	addr, err := devnet.ParseAddress(c.Transfer.Recipient)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// ParsePrivateKey parses a hex private key with or without 0x prefix.
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid funding key: %w", err)
	}
	return key, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := funding.ParseAmount(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("privkey", func(fl validator.FieldLevel) bool {
		if fl.Field().String() == "" {
			return true
		}
		_, err := ParsePrivateKey(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("envkey", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), "= \t\n")
	})
	return v
}

// formatValidationErrors turns validator errors into one readable error.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		_, field, _ := strings.Cut(fieldError.Namespace(), ".")
		switch fieldError.Tag() {
		case "required", "required_if":
			msgs = append(msgs, field+" is required")
		case "url":
			msgs = append(msgs, field+" must be a valid URL")
		case "oneof":
			msgs = append(msgs, field+" must be one of: "+fieldError.Param())
		case "eth_addr":
			msgs = append(msgs, field+" must be a valid address")
		case "amount":
			msgs = append(msgs, field+" must be an amount such as 1000, 20 gwei or 1.5 ether")
		case "privkey":
			msgs = append(msgs, field+" must be a hex private key")
		case "gte", "min":
			msgs = append(msgs, field+" must be at least "+fieldError.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	sort.Strings(msgs)
	return errors.New(strings.Join(msgs, "; "))
}
