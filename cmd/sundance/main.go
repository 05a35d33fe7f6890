// Command sundance compiles, analyses and evaluates symbolic expressions.
package main

import (
	"fmt"
	"os"

	"github.com/qsnake/trilinos-sub010/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
