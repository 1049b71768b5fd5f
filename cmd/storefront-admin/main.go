// Command storefront-admin runs operator tasks against the storefront
// database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "storefront-admin",
		Short:         "Operator tasks for the storefront API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(createAdminCmd(connectStore))
	rootCmd.AddCommand(ensureIndexesCmd(connectStore))

	return rootCmd
}
