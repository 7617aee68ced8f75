package main

import (
	"os"

	"github.com/soundprediction/notegraph/cmd/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
