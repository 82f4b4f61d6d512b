package main

import (
	_ "time/tzdata"

	"cheaphours/internal/cli"
)

func main() {
	cli.Execute()
}
