package main

import "github.com/jan-janssen/gmailsorter/cmd/cli"

func main() {
	cli.Execute()
}
