package main

import "github.com/devicelab-dev/comesee-snapshots/pkg/cli"

func main() {
	cli.Execute()
}
