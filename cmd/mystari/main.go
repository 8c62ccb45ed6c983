package main

import "github.com/mystari/mystari-api/internal/cli"

func main() {
	cli.Execute()
}
