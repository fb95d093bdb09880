package main

import "github.com/degenape/builderfee/internal/cli"

func main() {
	cli.Execute()
}
