package main

import "SeekBeat/cmd"

func main() {
	cmd.Execute()
}
