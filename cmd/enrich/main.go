package main

import "github.com/vietddude/enrich/internal/cli"

func main() {
	cli.Execute()
}
