// Command minervactl is the operator CLI for the Minerva journal
// pipeline: submit a journal, query a workflow's status, list curation
// items awaiting review, and read back a committed journal's
// psychometric scores. It opens the same store files minervad uses
// directly (curation DB, checkpoint DB) rather than talking to the
// daemon over a network, the same way the daemon itself is just another
// process attached to those files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "minervactl",
	Short: "Operate the Minerva journal pipeline",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
