// Package main provides the cachesim command.
package main

import "github.com/sarchlab/cachesim/cachesim/cmd"

func main() {
	cmd.Execute()
}
