package main

import "examprep/internal/cli"

func main() {
	cli.Execute()
}
