package funding

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

var units = []struct {
	suffix string
	scale  int64
}{
	{"ether", params.Ether},
	{"eth", params.Ether},
	{"gwei", params.GWei},
	{"wei", params.Wei},
}

// FormatEther converts wei to a human-readable ETH string.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}

	weiFloat := new(big.Float).SetInt(wei)
	ethFloat := new(big.Float).Quo(weiFloat, big.NewFloat(params.Ether))

	// Format with up to 4 decimal places
	return ethFloat.Text('f', 4)
}

// ParseAmount parses an amount such as "1000", "1.5ether" or "20 gwei"
// into wei. Without a unit the value is taken as wei.
func ParseAmount(s string) (*big.Int, error) {
	value := strings.ToLower(strings.TrimSpace(s))
	scale := int64(params.Wei)
	for _, u := range units {
		if strings.HasSuffix(value, u.suffix) {
			value = strings.TrimSpace(strings.TrimSuffix(value, u.suffix))
			scale = u.scale
			break
		}
	}

	r, ok := new(big.Rat).SetString(value)
	if !ok || value == "" {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("amount %q is negative", s)
	}

	r.Mul(r, new(big.Rat).SetInt64(scale))
	if !r.IsInt() {
		return nil, fmt.Errorf("amount %q is not a whole number of wei", s)
	}
	return new(big.Int).Set(r.Num()), nil
}
