package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds flags shared across the (single) command tree.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand builds the hch driver's entry point: a single command
// that optionally takes a database file path, per spec §4.H.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hch [database]",
		Short: "hch runs an interactive HCH question-answering session",
		Long: `hch drives a single Humans Consulting HCH session against a
terminal, prompting for actions (ask/reply/unlock/scratch) as the
scheduler produces ready contexts.

If a database path is given and exists, session state, the datastore,
and the automation cache are restored from it. Otherwise a fresh
session begins by asking for a root question. On exit, state is
snapshotted back to the given path.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var dbPath string
			if len(args) == 1 {
				dbPath = args[0]
			}
			return runSession(cmd, opts, dbPath)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	return cmd
}
