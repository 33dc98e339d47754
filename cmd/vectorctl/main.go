package main

import "github.com/markdave123-py/learnbridge/internal/cli"

func main() {
	cli.Execute()
}
