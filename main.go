package main

import "github.com/facefinder/facefinder/cmd"

func main() {
	cmd.Execute()
}
