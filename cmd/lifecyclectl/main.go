package main

import (
	"fmt"
	"os"

	"github.com/scholchat/scholchat-api/internal/cli"
)

func main() {
	if err := cli.NewRootCmd(cli.DefaultDependencies()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
