package main

import "github.com/grupovorp/adpilot/cmd"

func main() {
	cmd.Execute()
}
