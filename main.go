// Package main provides the entry point for histsim.
// histsim is a simulator of a distributed miss-coalescing directory built on
// Akita.
//
// For the full CLI, use: go run ./cmd/histsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("histsim - HIST miss-coalescing directory simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: histsim <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run        Run a simulation on a trace or a synthetic workload")
	fmt.Println("  config     Print the effective configuration as JSON")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/histsim --help' for the full CLI.")
	fmt.Println("Workload benchmarks: go run ./cmd/benchmark")
	fmt.Println("Simulator profiling: go run ./cmd/profile")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/histsim' instead.")
	}
}
