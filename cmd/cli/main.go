package main

import "mycelhub/cmd/cli/command"

func main() {
	command.Execute()
}
