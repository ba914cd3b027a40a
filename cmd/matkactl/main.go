package main

import (
	"fmt"
	"os"

	"github.com/radieske/matka-settlement/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "matkactl:", err)
		os.Exit(1)
	}
}
