package main

import "github.com/hz-b/phoebusalarm/cmd/alh2xml/cmd"

func main() {
	cmd.Execute()
}
