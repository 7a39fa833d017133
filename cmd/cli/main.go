package main

import (
	"os"

	"dataforge/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
