package main

import "chatrouter/cmd"

func main() {
	cmd.Execute()
}
