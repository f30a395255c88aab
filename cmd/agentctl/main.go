// Command agentctl runs, resumes and serves the conversational agents.
package main

import (
	"context"
	"os"

	"github.com/dshills/langgraph-agents/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
