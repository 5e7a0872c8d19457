package main

import "github.com/mhpenta/storygen/internal/cli"

func main() {
	cli.Execute()
}
