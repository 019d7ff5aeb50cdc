package main

import (
	"fmt"
	"os"

	"github.com/roach88/pensionledger/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil && !cli.IsReported(err) {
		fmt.Fprintln(os.Stderr, "pledger:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
