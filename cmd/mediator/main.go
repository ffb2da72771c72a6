package main

import "github.com/cosminstn/disruptor-mediator/internal/adapters/cli"

func main() {
	cli.Execute()
}
