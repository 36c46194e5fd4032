package main

import "github.com/zapdigest/ingest/cmd"

func main() {
	cmd.Execute()
}
