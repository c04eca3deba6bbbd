package main

import (
	"os"

	"coinchart/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
