// Package manifest reads Foundry broadcast files and lists the contracts a
// deployment run produced.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// RunLatest is the file Foundry writes for the most recent broadcast.
const RunLatest = "run-latest.json"

// BroadcastFile represents a Foundry broadcast file.
type BroadcastFile struct {
	Chain        uint64                 `json:"chain"`
	Transactions []BroadcastTransaction `json:"transactions"`
	Timestamp    uint64                 `json:"timestamp"`
	Commit       string                 `json:"commit"`
}

// BroadcastTransaction represents a transaction in a broadcast file.
type BroadcastTransaction struct {
	Hash                string               `json:"hash"`
	TransactionType     string               `json:"transactionType"`
	ContractName        string               `json:"contractName"`
	ContractAddr        string               `json:"contractAddress"`
	Function            string               `json:"function"`
	AdditionalContracts []AdditionalContract `json:"additionalContracts,omitempty"`
}

// AdditionalContract represents additional contracts deployed in a transaction.
type AdditionalContract struct {
	TransactionType string `json:"transactionType"`
	Address         string `json:"address"`
}

// Path returns the run-latest.json location for a script run on chainID
// inside the project at root.
func Path(root, script string, chainID uint64) string {
	return filepath.Join(root, "broadcast", script, strconv.FormatUint(chainID, 10), RunLatest)
}

// Load reads and decodes a broadcast file.
func Load(path string) (*BroadcastFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read broadcast file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a broadcast file.
func Parse(data []byte) (*BroadcastFile, error) {
	var f BroadcastFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode broadcast file: %w", err)
	}
	return &f, nil
}
