package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/aqez/undaunted/internal/undaunted/config"
	"github.com/aqez/undaunted/internal/utils"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	ConfigFile string
	LogStderr  bool
	CPUProfile string
	MemProfile string

	cpuProfile *os.File
}

func defaultRootOptions() (*rootOptions, error) {
	home, err := utils.Home()
	if err != nil {
		log.Printf("could not get home directory: %v", err)
		return nil, err
	}

	return &rootOptions{
		ConfigFile: filepath.Join(home, "config.yaml"),
	}, nil
}

func newRootCmd(version string) (*cobra.Command, error) {
	o, err := defaultRootOptions()
	if err != nil {
		return nil, err
	}

	cmd := &cobra.Command{
		Use:               "undaunted",
		Short:             "Reliable message delivery over UDP. Every message arrives at least once.",
		SilenceUsage:      true,
		PersistentPreRunE: o.preRun,
		PersistentPostRun: o.postRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, "config file path")
	cmd.PersistentFlags().BoolVar(&o.LogStderr, "log-stderr", false, "log to stderr instead of the log file")
	cmd.PersistentFlags().StringVar(&o.CPUProfile, "cpuprofile", "", "write cpu profile to file")
	cmd.PersistentFlags().StringVar(&o.MemProfile, "memprofile", "", "write memory profile to this file")

	cmd.AddCommand(newVersionCmd(version))
	cmd.AddCommand(newListenCmd(o))
	cmd.AddCommand(newSendCmd(o))
	cmd.AddCommand(newChatCmd(o))
	cmd.AddCommand(newConfigCmd(o))
	cmd.AddCommand(newServiceCmd(o))

	return cmd, nil
}

func (o *rootOptions) preRun(cmd *cobra.Command, args []string) error {
	if o.LogStderr {
		log.SetOutput(os.Stderr)
	}
	if o.CPUProfile != "" {
		log.Println("Profiling CPU...")
		f, err := os.Create(o.CPUProfile)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return err
		}
		o.cpuProfile = f
	}
	return nil
}

func (o *rootOptions) postRun(cmd *cobra.Command, args []string) {
	if o.cpuProfile != nil {
		pprof.StopCPUProfile()
		o.cpuProfile.Close()
		o.cpuProfile = nil
	}
	if o.MemProfile != "" {
		log.Println("Profiling memory...")
		f, err := os.Create(o.MemProfile)
		if err != nil {
			log.Printf("could not create memory profile: %v", err)
			return
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Printf("could not write memory profile: %v", err)
		}
	}
}

// loadConfig reads the config file and applies a non-empty bind override.
func (o *rootOptions) loadConfig(bind string) (config.Config, error) {
	cfg, err := config.LoadConfig(o.ConfigFile)
	if err != nil {
		return config.Config{}, err
	}
	if bind != "" {
		cfg.BindAddress = bind
		if err := cfg.Validate(); err != nil {
			return config.Config{}, fmt.Errorf("invalid bind address: %w", err)
		}
	}
	return cfg, nil
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "undaunted %s\n", version)
		},
	}
}

// Execute invokes the command.
func Execute(version string) error {
	cmd, err := newRootCmd(version)
	if err != nil {
		return err
	}
	return cmd.Execute()
}
