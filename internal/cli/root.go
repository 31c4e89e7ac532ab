package cli

import (
	"fmt"

	"github.com/moqtransport/relaycore/internal/version"
	"github.com/spf13/cobra"
)

// NewCommand builds the relay's root command: a single RunE entry point
// that loads the config file named by --config and runs the server
// until signaled.
func NewCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "moq-relay",
		Short:         "Media-over-QUIC relay",
		Version:       fmt.Sprintf("%s (%s)", version.Version(), version.Commit()),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunRelay(configFile)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "config.relay.yaml", "path to config file")

	return cmd
}
