package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "console",
		Short:        "Admin console for the remote user service",
		SilenceUsage: true,
	}
	root.AddCommand(
		newServeCommand(),
		newUsersCommand(),
		newOTPCommand(),
		newPasswordCommand(),
	)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
