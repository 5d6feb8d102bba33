package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Camier/2SEARX2COOL-sub001/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("autopilot version %s\n", version.String())
	},
}
