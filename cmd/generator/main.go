package main

import "github.com/firmbeat/recurflow/services/generator/cli"

func main() {
	cli.Execute()
}
