package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aqez/undaunted/internal/undaunted/application"
	"github.com/aqez/undaunted/internal/undaunted/delivery"
	"github.com/aqez/undaunted/internal/undaunted/packets"
	"github.com/spf13/cobra"
)

// pollInterval is how often received packets are collected for printing.
const pollInterval = 10 * time.Millisecond

type listenOptions struct {
	root *rootOptions
	Bind string
}

func newListenCmd(root *rootOptions) *cobra.Command {
	o := &listenOptions{root: root}

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print every message received on the bind address",
		Args:  cobra.NoArgs,
		RunE:  o.run,
	}
	cmd.Flags().StringVarP(&o.Bind, "bind", "b", "", "bind address, overrides the config (e.g. 0.0.0.0:1337)")

	return cmd
}

func (o *listenOptions) run(cmd *cobra.Command, args []string) error {
	cfg, err := o.root.loadConfig(o.Bind)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := application.New(cfg)
	if err := app.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", app.LocalAddr())

	printReceived(ctx, cmd.OutOrStdout(), app)
	return app.Stop()
}

// printReceived writes every received talk to out until ctx is done.
func printReceived(ctx context.Context, out io.Writer, app *application.Application) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, received := range app.Receive() {
				printPacket(out, received)
			}
		}
	}
}

func printPacket(out io.Writer, received delivery.AddressedPacket) {
	talk, ok := received.Packet.Payload.(packets.Talk)
	if !ok {
		return
	}
	fmt.Fprintf(out, "Received %d bytes from %s: %s\n", len(talk.Phrase), received.Address, talk.Phrase)
}
