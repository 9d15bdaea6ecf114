package main

import "github.com/pramitgaha/map-error/cmd"

func main() {
	cmd.Execute()
}
