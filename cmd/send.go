package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aqez/undaunted/internal/undaunted/application"
	"github.com/aqez/undaunted/internal/utils"
	"github.com/spf13/cobra"
)

const (
	defaultPeer   = "127.0.0.1:1337"
	defaultPhrase = "Hello from undaunted"
)

var ErrNotDelivered = errors.New("message was not acknowledged in time")

type sendOptions struct {
	root    *rootOptions
	Bind    string
	Timeout time.Duration
}

func newSendCmd(root *rootOptions) *cobra.Command {
	o := &sendOptions{root: root}

	cmd := &cobra.Command{
		Use:   "send [<host>:<port> [<phrase>]]",
		Short: "Send one message and wait until the peer acknowledges it",
		Long:  "The peer defaults to " + defaultPeer + " and the phrase to \"" + defaultPhrase + "\".",
		Args:  cobra.MaximumNArgs(2),
		RunE:  o.run,
	}
	cmd.Flags().StringVarP(&o.Bind, "bind", "b", "0.0.0.0:0", "bind address of the sending socket")
	cmd.Flags().DurationVarP(&o.Timeout, "timeout", "t", 10*time.Second, "how long to wait for the acknowledgment")

	return cmd
}

func (o *sendOptions) parseArgs(args []string) (peer, phrase string) {
	peer, phrase = defaultPeer, defaultPhrase
	if len(args) > 0 {
		peer = args[0]
	}
	if len(args) > 1 {
		phrase = args[1]
	}
	return peer, phrase
}

func (o *sendOptions) run(cmd *cobra.Command, args []string) error {
	peer, phrase := o.parseArgs(args)
	to, err := utils.ResolveAddrPort(peer)
	if err != nil {
		return err
	}

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
	defer app.Stop()

	if err := app.Send(phrase, to); err != nil {
		return err
	}

	deadline := time.NewTimer(o.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			stats := app.Stats()
			return fmt.Errorf("%w: %d transmission(s) to %s", ErrNotDelivered, stats.Retransmitted+1, to)
		case <-ticker.C:
			if stats := app.Stats(); stats.AcksMatched > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Delivered %d bytes to %s\n", len(phrase), to)
				return nil
			}
		}
	}
}
