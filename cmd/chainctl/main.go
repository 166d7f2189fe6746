// Command chainctl is the operator debugging CLI for a chaind node: it
// opens the same on-disk backend directly (it is not an RPC client)
// to inspect chain head state and submit hand-built blocks or
// transactions, mirroring the per-subsystem command style of the
// teacher's cmd/cli package.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{Use: "chainctl", Short: "chain core operator CLI"}
	root.AddCommand(headCmd())
	root.AddCommand(submitTransactionCmd())
	root.AddCommand(submitBlockCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
