package main

import "github.com/hz-b/phoebusalarm/cmd/xml2alh/cmd"

func main() {
	cmd.Execute()
}
