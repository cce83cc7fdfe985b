// Package main is the entry point for the ork CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ork: %v\n", err)
		os.Exit(1)
	}
}
