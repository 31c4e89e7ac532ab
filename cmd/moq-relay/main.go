// Command moq-relay runs a Media-over-QUIC relay node.
package main

import (
	"fmt"
	"os"

	"github.com/moqtransport/relaycore/internal/cli"
)

func main() {
	if err := cli.NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
