package main

import "radio-stream/cmd"

func main() {
	cmd.Execute()
}
