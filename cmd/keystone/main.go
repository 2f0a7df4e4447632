// The keystone binary wires the metadata CLI with no models registered.
// Applications that want inspect/schema/serve over their own types build
// a small main of their own:
//
//	func main() {
//		root := commands.NewRootCommand(&Customer{}, &Order{})
//		if err := root.Execute(); err != nil {
//			os.Exit(1)
//		}
//	}
package main

import (
	"fmt"
	"os"

	"github.com/keystone-orm/keystone/pkg/commands"
)

func main() {
	rootCmd := commands.NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
