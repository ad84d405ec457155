package main

import (
	"os"

	"steam-trade-farm/cmd/farm/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
