// Package commands implements CLI command handlers for gitlines.
package commands

import (
	"github.com/spf13/cobra"

	// Repository backends selectable with --backend.
	_ "github.com/Sumatoshi-tech/gitlines/pkg/backend/gitcli"
	_ "github.com/Sumatoshi-tech/gitlines/pkg/backend/gogit"
	_ "github.com/Sumatoshi-tech/gitlines/pkg/backend/libgit2"
)

// configFlag names the persistent flag holding an explicit config file path.
const configFlag = "config"

// NewRootCommand creates the gitlines command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gitlines",
		Short: "Count lines of code across git history",
		Long: `gitlines reports the total number of lines of the selected files in every
selected commit of a repository, caching per-blob counts between runs.

Commands:
  count     Count lines per commit
  cache     Inspect and convert line count cache files
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(configFlag, "", "config file (default .gitlines.yaml in CWD or $HOME)")

	rootCmd.AddCommand(NewCountCommand())
	rootCmd.AddCommand(NewCacheCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// configPath returns the value of the inherited --config flag.
func configPath(cmd *cobra.Command) string {
	flag := cmd.Flag(configFlag)
	if flag == nil {
		return ""
	}

	return flag.Value.String()
}
