// Command vertexd runs the vertexledger node's event bus, websocket
// gateway, and mining request handler. Restructured from the teacher's
// hand-rolled flag.Parse + switch flag.Arg(0) dispatch
// (cmd/thane/main.go) into a cobra root command, matching how
// _examples/cuemby-warren/cmd/warren organizes its subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "vertexd",
	Short: "vertexledger node: event bus, websocket gateway, mining admission",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(twinTxCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
