package main

import "github.com/TheManchineel/titilda-music/cmd"

func main() {
	cmd.Execute()
}
