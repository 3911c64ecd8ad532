// Command unidrive serves the Unified Drive API: local accounts, Google Drive
// connections and the file operations performed through them.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pysugar/unified-drive/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "unidrive",
	Short: "Browse and manage Google Drive storage through one API",
	Long: `unidrive connects local user accounts to one or more Google Drive
connections and exposes file operations over a JSON API.

Running it without a subcommand starts the server.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(`{{printf "unidrive version %s\n" .Version}}`)
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("unidrive " + version.String())
		},
	}
}
