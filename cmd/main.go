package main

import (
	"os"

	"github.com/PandaDev0069/tuiz-backend-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
