package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/sambigeara/lwwdict/pkg/observability/logging"
	"github.com/sambigeara/lwwdict/pkg/workspace"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("failed to execute command: %q", err)
	}
}

func newRootCmd() *cobra.Command {
	defaultDir, err := workspace.DefaultDir()
	if err != nil {
		defaultDir = ".lwwdict"
	}

	rootCmd := &cobra.Command{
		Use:           "lwwdict",
		Short:         "A replicated last-writer-wins key-value dictionary",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level, _ := cmd.Flags().GetString("log-level")
			logging.Init(logging.ParseLevel(level))
		},
	}
	rootCmd.PersistentFlags().String("dir", defaultDir, "Directory where replica state is persisted")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a replica in the state directory",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
	initCmd.Flags().String("id", "", "Replica identifier (random when empty)")
	initCmd.Flags().String("bias", "add", "Tie-break when an add and a remove share a timestamp (add or remove)")
	initCmd.Flags().String("clock", "wall", "Timestamp source (wall or logical)")
	initCmd.Flags().Int("port", 0, "UDP port the node listens on")
	initCmd.Flags().StringSlice("peer", nil, "Peer address host[:port], repeatable")
	initCmd.Flags().Bool("force", false, "Overwrite an existing config")

	putCmd := &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Set a key",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE:  runPut,
	}

	delCmd := &cobra.Command{
		Use:     "del [key]",
		Aliases: []string{"rm"},
		Short:   "Remove a key",
		Args:    cobra.ExactArgs(1),
		RunE:    runDel,
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Print the value of a visible key",
		Args:  cobra.ExactArgs(1),
		RunE:  runGet,
	}
	getCmd.Flags().Bool("by-value", false, "Treat the argument as a value and print its most recent holder")

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List visible keys",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	lsCmd.Flags().Bool("all", false, "Include removed keys and tombstones")

	mergeCmd := &cobra.Command{
		Use:   "merge [replica-dir|state-file]",
		Short: "Merge another replica's persisted state into this one",
		Args:  cobra.ExactArgs(1),
		RunE:  runMerge,
	}

	nodeCmd := &cobra.Command{
		Use:   "node",
		Short: "Run the replica and gossip with its peers",
		Args:  cobra.NoArgs,
		RunE:  runNode,
	}
	nodeCmd.Flags().Int("port", 0, "Override the configured UDP port")
	nodeCmd.Flags().StringSlice("peer", nil, "Additional peer address host[:port], repeatable")

	rootCmd.AddCommand(initCmd, putCmd, delCmd, getCmd, lsCmd, mergeCmd, nodeCmd)
	return rootCmd
}
