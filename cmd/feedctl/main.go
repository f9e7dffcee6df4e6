package main

import (
	"os"

	"github.com/pianoholic0120/wp1141-sub002/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
