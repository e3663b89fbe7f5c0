package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "uptask",
	Short: "UpTask project management API",
	Long:  `UpTask backend: account lifecycle, cookie sessions, projects, tasks, team and notes over HTTP, plus an internal gRPC session service.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
