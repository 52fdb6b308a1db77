package main

import "github.com/godamri/helix-audit/cmd/auditctl/commands"

func main() {
	commands.Execute()
}
