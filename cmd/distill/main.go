// Package main provides the distill command line interface.
package main

import (
	"fmt"
	"os"
)

const version = "v0.1.0"

func usage() {
	fmt.Println("distill - knowledge distillation for image classifiers")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  distill train [flags]   Train a student under a teacher")
	fmt.Println("  distill eval [flags]    Evaluate a checkpoint on the test split")
	fmt.Println("  distill version         Show version")
	fmt.Println()
	fmt.Println("Run 'distill train -h' or 'distill eval -h' for the flag lists.")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "train":
		err = runTrain(os.Args[2:])
	case "eval":
		err = runEval(os.Args[2:])
	case "version":
		fmt.Printf("distill %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
