package main

import "orblocal/cmd"

func main() {
	cmd.Execute()
}
