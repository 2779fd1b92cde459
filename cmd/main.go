package main

import (
	"os"

	"mathquiz-leaderboard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
