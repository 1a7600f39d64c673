package main

import (
	"os"

	"github.com/donghouse/dongometer/cmd/dongometer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
