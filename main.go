package main

import "quill/cli"

func main() {
	cli.Execute()
}
