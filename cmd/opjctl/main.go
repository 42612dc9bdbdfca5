package main

import (
	"os"

	"github.com/opjourney/opjourney/cmd/opjctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
