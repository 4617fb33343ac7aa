// devctl drives a local Ethereum test node.
//
// Use it to impersonate accounts, fund them, run a token transfer as an
// impersonated account and list the contracts of a Foundry deployment.
package main

import "github.com/Bidon15/popsigner/devctl/cmd"

func main() {
	cmd.Execute()
}
