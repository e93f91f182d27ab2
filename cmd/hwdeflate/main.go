package main

import (
	"os"

	"github.com/arloliu/hwdeflate/cmd/hwdeflate/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
