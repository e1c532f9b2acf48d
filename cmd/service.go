package cmd

import (
	"fmt"

	internalService "github.com/aqez/undaunted/internal/service"
	"github.com/spf13/cobra"
)

var serviceActions = []string{"install", "uninstall", "start", "stop", "restart", "status", "run"}

type serviceOptions struct {
	root *rootOptions
}

func newServiceCmd(root *rootOptions) *cobra.Command {
	o := &serviceOptions{root: root}

	cmd := &cobra.Command{
		Use:   "service [install|uninstall|start|stop|restart|status|run]",
		Short: "Manage the undaunted listener as a system service",
		Long: `Manage the undaunted listener as a system service.

Available actions:
  install   - Install the listener as a system service
  uninstall - Remove the system service
  start     - Start the service
  stop      - Stop the service
  restart   - Restart the service
  status    - Show the status of the service
  run       - Run the listener under the service manager

Received messages are written to the log file.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: serviceActions,
		RunE:      o.run,
	}

	return cmd
}

func (o *serviceOptions) run(cmd *cobra.Command, args []string) error {
	action := args[0]
	if err := cobra.OnlyValidArgs(cmd, args); err != nil {
		return fmt.Errorf("unknown action: %s", action)
	}

	serviceManager, err := internalService.NewServiceManager(&internalService.Config{
		ConfigFile: o.root.ConfigFile,
	})
	if err != nil {
		return fmt.Errorf("failed to create service manager: %w", err)
	}

	out := cmd.OutOrStdout()
	switch action {
	case "install":
		err = serviceManager.Install()
	case "uninstall":
		err = serviceManager.Uninstall()
	case "start":
		err = serviceManager.Start()
	case "stop":
		err = serviceManager.Stop()
	case "restart":
		err = serviceManager.Restart()
	case "status":
		var status string
		status, err = serviceManager.Status()
		if err == nil {
			fmt.Fprintf(out, "Service Status: %s\n", status)
		}
		return err
	case "run":
		return serviceManager.Run()
	}
	if err != nil {
		return fmt.Errorf("failed to %s service: %w", action, err)
	}
	fmt.Fprintf(out, "Service %s: done\n", action)
	return nil
}
