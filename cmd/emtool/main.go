package main

import (
	"os"

	"i4.energy/across/emtool/cmd/emtool/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
