package main

import (
	"os"

	"github.com/etherealheim/aria/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
