package main

import "plexman/cmd/plexman/cmd"

func main() {
	cmd.Execute()
}
