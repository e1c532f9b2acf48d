package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/aqez/undaunted/internal/undaunted/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type configInitOptions struct {
	root  *rootOptions
	Force bool
}

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	o := &configInitOptions{root: root}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults and a new node id",
		Args:  cobra.NoArgs,
		RunE:  o.run,
	}
	initCmd.Flags().BoolVarP(&o.Force, "force", "f", false, "overwrite an existing config file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig("")
			if err != nil {
				return err
			}
			content, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		},
	})

	return cmd
}

func (o *configInitOptions) run(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(o.root.ConfigFile); err == nil && !o.Force {
		return fmt.Errorf("%s already exists, use --force to overwrite it", o.root.ConfigFile)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(o.root.ConfigFile, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s with node id %s\n", o.root.ConfigFile, cfg.NodeID)
	return nil
}
