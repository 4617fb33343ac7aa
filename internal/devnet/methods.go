package devnet

import "fmt"

// Namespace selects the prefix of the node's test-only RPC extensions.
type Namespace string

const (
	// NamespaceAnvil targets Foundry's anvil.
	NamespaceAnvil Namespace = "anvil"
	// NamespaceHardhat targets the Hardhat network.
	NamespaceHardhat Namespace = "hardhat"
)

// Test-only extension methods, without namespace prefix.
const (
	methodImpersonate       = "impersonateAccount"
	methodStopImpersonating = "stopImpersonatingAccount"
	methodSetBalance        = "setBalance"
)

// Standard methods, used for metric labels and error reporting.
const (
	EthGetBalance            = "eth_getBalance"
	EthGetTransactionCount   = "eth_getTransactionCount"
	EthChainID               = "eth_chainId"
	EthSendRawTransaction    = "eth_sendRawTransaction"
	EthGetTransactionReceipt = "eth_getTransactionReceipt"
)

// ParseNamespace validates a namespace name.
func ParseNamespace(s string) (Namespace, error) {
	switch ns := Namespace(s); ns {
	case NamespaceAnvil, NamespaceHardhat:
		return ns, nil
	case "":
		return NamespaceAnvil, nil
	default:
		return "", fmt.Errorf("unknown namespace %q (want anvil or hardhat)", s)
	}
}

// Method returns the full method name for an extension.
func (ns Namespace) Method(name string) string {
	return string(ns) + "_" + name
}
