package main

import "github.com/nextlevelbuilder/pagerelay/cmd"

func main() {
	cmd.Execute()
}
