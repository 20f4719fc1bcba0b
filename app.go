package main

import "github.com/discourse/discourse-releases/cmd"

func main() {
	cmd.Run()
}
