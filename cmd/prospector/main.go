package main

import (
	"os"

	"github.com/lix-it/prospector/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
