// Package main provides the histsim command line.
// histsim replays memory access traces on a distributed miss-coalescing
// directory built on Akita.
package main

import (
	"github.com/tebeka/atexit"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		atexit.Fatalf("Error: %v\n", err)
	}

	atexit.Exit(0)
}
