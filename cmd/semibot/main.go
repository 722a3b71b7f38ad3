package main

import (
	"os"

	"github.com/GoatGit/semibot/cmd/semibot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
