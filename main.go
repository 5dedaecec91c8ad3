// Package main is the entry point for the pktlive capture daemon and CLI.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/pktlive/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
