package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aqez/undaunted/internal/undaunted/application"
	"github.com/aqez/undaunted/internal/utils"
	"github.com/spf13/cobra"
)

type chatOptions struct {
	root   *rootOptions
	Bind   string
	Linger time.Duration
}

func newChatCmd(root *rootOptions) *cobra.Command {
	o := &chatOptions{root: root}

	cmd := &cobra.Command{
		Use:   "chat <host>:<port>",
		Short: "Send every line of stdin to a peer and print what it sends back",
		Args:  cobra.ExactArgs(1),
		RunE:  o.run,
	}
	cmd.Flags().StringVarP(&o.Bind, "bind", "b", "", "bind address, overrides the config (e.g. 0.0.0.0:1338)")
	cmd.Flags().DurationVar(&o.Linger, "linger", 5*time.Second, "how long to wait for outstanding acknowledgments at the end of input")

	return cmd
}

func (o *chatOptions) run(cmd *cobra.Command, args []string) error {
	to, err := utils.ResolveAddrPort(args[0])
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
	if err := app.Start(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Chatting with %s from %s, end with Ctrl-D\n", to, app.LocalAddr())

	chatCtx, endChat := context.WithCancel(ctx)
	defer endChat()
	go func() {
		defer endChat()
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := app.Send(line, to); err != nil {
				log.Printf("could not send line: %v", err)
				fmt.Fprintf(cmd.ErrOrStderr(), "not sent: %v\n", err)
			}
		}
	}()

	printReceived(chatCtx, cmd.OutOrStdout(), app)
	if ctx.Err() == nil && !awaitDelivery(app, o.Linger) {
		fmt.Fprintln(cmd.ErrOrStderr(), "some messages were not acknowledged")
	}
	return app.Stop()
}

// awaitDelivery waits until nothing is queued or unacknowledged and reports
// whether that happened within timeout.
func awaitDelivery(app *application.Application, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		stats := app.Stats()
		if stats.Outbound == 0 && stats.Unacked == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}
