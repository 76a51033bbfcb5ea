package main

import "cardstock/cmd"

func main() {
	cmd.Execute()
}
