package main

import "github.com/firmbeat/recurflow/services/notifier/cli"

func main() {
	cli.Execute()
}
