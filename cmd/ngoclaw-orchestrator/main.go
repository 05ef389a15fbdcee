// Command ngoclaw-orchestrator is the CLI entrypoint: run, resume, and
// list subcommands over the Scheduler, collapsed into a single binary
// since the orchestrator has no HTTP/Telegram surface of its own.
package main

import (
	"fmt"
	"os"

	"github.com/ngoclaw/ngoclaw/orchestrator/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.ExitFatal)
	}
}
