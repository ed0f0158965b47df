package main

import "github.com/marcus/runhooks/cmd/runhooks/commands"

func main() {
	commands.Execute()
}
