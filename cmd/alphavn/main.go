package main

import (
	"os"

	"github.com/thanhpn/alphavn/cmd/alphavn/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
