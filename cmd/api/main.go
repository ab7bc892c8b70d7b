package main

import "github.com/firmbeat/recurflow/services/api/cli"

func main() {
	cli.Execute()
}
