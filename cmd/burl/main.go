// Command burl orchestrates file-based task workflows on top of git
// worktrees: tasks move through READY, DOING, QA, DONE, and BLOCKED
// directories on a dedicated workflow branch while each claimed task works
// in its own branch and worktree.
package main

import (
	"os"

	"github.com/re-cinq/burl/internal/cli"
	"github.com/re-cinq/burl/internal/engine"
)

func main() {
	os.Exit(engine.ExitCode(cli.Execute()))
}
