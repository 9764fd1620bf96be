package main

import "github.com/cklxx/codectx/cmd"

func main() {
	cmd.Execute()
}
