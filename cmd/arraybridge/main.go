package main

import (
	"fmt"
	"os"
)

// Version information
const (
	Version = "0.1.0"
	Name    = "arraybridge"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
