// Command velricctl drafts and submits mission answers from a terminal.
//
// Drafts live in a local SQLite file so an answer survives between runs.
// Submitting goes through the same integrity tracker the web client uses,
// so tab switches reported with --tab-switches are counted the same way.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
