package main

import "github.com/encodeous/reroute/cmd"

func main() {
	cmd.Execute()
}
