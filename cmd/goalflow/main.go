package main

import (
	"os"

	"goalflow/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(cli.GetExitCode(err))
	}
}
