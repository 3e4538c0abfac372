package main

import "github.com/glowcase/glowcase/cmd"

func main() {
	cmd.Execute()
}
