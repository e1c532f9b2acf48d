package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aqez/undaunted/internal/undaunted/application"
	"github.com/aqez/undaunted/internal/undaunted/config"
	"github.com/aqez/undaunted/internal/undaunted/packets"
	"github.com/kardianos/service"
)

// pollInterval is how often received messages are collected for logging.
const pollInterval = 100 * time.Millisecond

// Config holds the shared service configuration
type Config struct {
	ConfigFile string
}

// ServiceManager installs and controls a listener running as an OS service
type ServiceManager struct {
	config  *Config
	service service.Service
}

// NewServiceManager creates a new service manager with the given configuration
func NewServiceManager(cfg *Config) (*ServiceManager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("could not get executable path: %w", err)
	}

	args := []string{"service", "run"}
	if cfg.ConfigFile != "" {
		args = append(args, "-c", cfg.ConfigFile)
	}

	svcConfig := &service.Config{
		Name:        "undaunted",
		DisplayName: "Undaunted listener",
		Description: "Receives reliable UDP messages and writes them to the undaunted log",
		Executable:  execPath,
		Arguments:   args,
	}

	s, err := service.New(&program{config: cfg}, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return &ServiceManager{
		config:  cfg,
		service: s,
	}, nil
}

func (sm *ServiceManager) Install() error {
	return sm.service.Install()
}

func (sm *ServiceManager) Uninstall() error {
	return sm.service.Uninstall()
}

func (sm *ServiceManager) Start() error {
	return sm.service.Start()
}

func (sm *ServiceManager) Stop() error {
	return sm.service.Stop()
}

func (sm *ServiceManager) Restart() error {
	return sm.service.Restart()
}

// Status returns a human readable status of the OS service
func (sm *ServiceManager) Status() (string, error) {
	status, err := sm.service.Status()
	if err != nil {
		return "", err
	}
	return StatusString(status), nil
}

// Run runs the listener in the foreground until the service manager stops it
func (sm *ServiceManager) Run() error {
	return sm.service.Run()
}

func StatusString(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Running"
	case service.StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// program implements service.Interface
type program struct {
	config *Config
	app    *application.Application
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(s service.Service) error {
	cfg, err := config.LoadConfig(p.config.ConfigFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.app = application.New(cfg)
	if err := p.app.Start(ctx); err != nil {
		cancel()
		return err
	}
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		p.done <- p.run(ctx)
	}()
	log.Println("Undaunted service started")
	return nil
}

func (p *program) Stop(s service.Service) error {
	log.Println("Stopping undaunted service...")
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return <-p.done
}

func (p *program) run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return p.app.Stop()
		case <-ticker.C:
			for _, received := range p.app.Receive() {
				if talk, ok := received.Packet.Payload.(packets.Talk); ok {
					log.Printf("Received from %s: %s", received.Address, talk.Phrase)
				}
			}
		}
	}
}
