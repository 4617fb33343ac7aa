package manifest

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Contract is a deployed contract name and address.
type Contract struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
}

// Contracts lists each contract name once, bound to the address of its
// first occurrence, in document order. Transactions without a contract
// name or address (plain calls) are skipped.
func (f *BroadcastFile) Contracts() []Contract {
	seen := make(map[string]struct{}, len(f.Transactions))
	out := make([]Contract, 0, len(f.Transactions))
	for _, tx := range f.Transactions {
		if tx.ContractName == "" || tx.ContractAddr == "" {
			continue
		}
		if _, dup := seen[tx.ContractName]; dup {
			continue
		}
		seen[tx.ContractName] = struct{}{}
		out = append(out, Contract{Name: tx.ContractName, Address: tx.ContractAddr})
	}
	return out
}

// WriteTable prints contracts as aligned name/address rows.
func WriteTable(w io.Writer, contracts []Contract) error {
	tw := tabwriter.NewWriter(w, 12, 0, 1, ' ', 0)
	for _, c := range contracts {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.Address); err != nil {
			return err
		}
	}
	return tw.Flush()
}
