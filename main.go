package main

import (
	"os"

	"github.com/spigell/cvtabs/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
