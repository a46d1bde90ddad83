package main

import "vaultindex/internal/cli"

func main() {
	cli.Execute()
}
