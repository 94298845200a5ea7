package main

import "github.com/agentic-research/depot/cmd"

func main() {
	cmd.Execute()
}
