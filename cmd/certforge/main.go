package main

import "github.com/certforge/certforge/cmd/certforge/cmd"

func main() {
	cmd.Execute()
}
