package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vertexledger/node/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(buildinfo.String())
		for k, v := range buildinfo.RuntimeInfo() {
			fmt.Printf("  %-12s %s\n", k+":", v)
		}
	},
}
