package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBroadcast = `{
  "transactions": [
    {
      "hash": "0x01",
      "transactionType": "CREATE",
      "contractName": "Token",
      "contractAddress": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
      "function": null
    },
    {
      "hash": "0x02",
      "transactionType": "CALL",
      "contractName": null,
      "contractAddress": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
      "function": "mint(address,uint256)"
    },
    {
      "hash": "0x03",
      "transactionType": "CREATE",
      "contractName": "Vault",
      "contractAddress": "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
      "additionalContracts": [
        {"transactionType": "CREATE", "address": "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"}
      ]
    },
    {
      "hash": "0x04",
      "transactionType": "CREATE",
      "contractName": "Token",
      "contractAddress": "0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9"
    }
  ],
  "chain": 5,
  "timestamp": 1700000000,
  "commit": "abc1234"
}`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleBroadcast))
	require.NoError(t, err)

	assert.Equal(t, uint64(5), f.Chain)
	assert.Equal(t, "abc1234", f.Commit)
	require.Len(t, f.Transactions, 4)
	assert.Equal(t, "mint(address,uint256)", f.Transactions[1].Function)
	require.Len(t, f.Transactions[2].AdditionalContracts, 1)

	_, err = Parse([]byte("{not json"))
	assert.ErrorContains(t, err, "decode broadcast file")
}

func TestContracts(t *testing.T) {
	f, err := Parse([]byte(sampleBroadcast))
	require.NoError(t, err)

	assert.Equal(t, []Contract{
		{Name: "Token", Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3"},
		{Name: "Vault", Address: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"},
	}, f.Contracts())
}

func TestContracts_Empty(t *testing.T) {
	tests := []struct {
		name string
		file BroadcastFile
	}{
		{name: "no transactions", file: BroadcastFile{}},
		{name: "calls only", file: BroadcastFile{Transactions: []BroadcastTransaction{
			{Hash: "0x01", Function: "approve(address,uint256)", ContractAddr: "0x5FbDB2315678afecb367f032d93F642f64180aa3"},
		}}},
		{name: "name without address", file: BroadcastFile{Transactions: []BroadcastTransaction{
			{ContractName: "Token"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, tt.file.Contracts())
		})
	}
}

func TestPath(t *testing.T) {
	got := Path("/work/project", "Deploy.Goerli.s.sol", 5)
	assert.Equal(t, filepath.Join("/work/project", "broadcast", "Deploy.Goerli.s.sol", "5", "run-latest.json"), got)
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	path := Path(root, "Deploy.s.sol", 31337)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(sampleBroadcast), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Contracts(), 2)

	_, err = Load(filepath.Join(root, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTable(&buf, []Contract{
		{Name: "Token", Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3"},
		{Name: "VeryLongContractName", Address: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"},
	})
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Equal(t, "Token                0x5FbDB2315678afecb367f032d93F642f64180aa3", string(lines[0]))
	assert.Equal(t, "VeryLongContractName 0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512", string(lines[1]))
}
