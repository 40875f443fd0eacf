package main

import "github.com/fakeyudi/projector/cmd"

func main() {
	cmd.Execute()
}
