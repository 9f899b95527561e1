package main

import "github.com/opsgrep/lograg/internal/cli"

func main() {
	cli.Execute()
}
