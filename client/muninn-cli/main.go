package main

import "Muninn/client/muninn-cli/cmd"

func main() {
	cmd.Execute()
}
