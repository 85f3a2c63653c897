package main

import (
	"os"

	"github.com/ashare-lab/screener/cmd/screener/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
