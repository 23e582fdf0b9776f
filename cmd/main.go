package main

import (
	"context"
	"log"
	"os"

	"smartserve/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Printf("smartserve: %v", err)
		os.Exit(1)
	}
}
