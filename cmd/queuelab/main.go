package main

import "queuelab/cmd"

func main() {
	cmd.Execute()
}
