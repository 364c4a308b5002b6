package main

import (
	"os"

	"bindkey/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
