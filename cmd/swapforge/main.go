package main

import (
	"os"

	"github.com/lugondev/swapforge/cmd/swapforge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
