// Command adlayers inspects operator catalogs and runs the layered transform
// dispatcher on small scenarios.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
