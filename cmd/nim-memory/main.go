package main

import "github.com/becomeliminal/nim-memory/cmd/nim-memory/cli"

func main() {
	cli.Execute()
}
