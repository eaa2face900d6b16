package main

import (
	"os"

	"treekem/cmd/treekem/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
