package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redwell/law-search/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show detailed version information",
		Run: func(*cobra.Command, []string) {
			fmt.Println(version.Info())
		},
	}
}
