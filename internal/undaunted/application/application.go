package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/aqez/undaunted/internal/undaunted/config"
	"github.com/aqez/undaunted/internal/undaunted/delivery"
	"github.com/aqez/undaunted/internal/undaunted/encoder"
	"github.com/aqez/undaunted/internal/undaunted/metrics"
	"github.com/aqez/undaunted/internal/undaunted/packets"
	"github.com/aqez/undaunted/internal/undaunted/socket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
)

var ErrNotRunning = errors.New("application is not running")

const shutdownTimeout = 5 * time.Second

// Application binds a UDP socket and runs a delivery service on it.
type Application struct {
	config config.Config

	mutex         sync.Mutex
	socket        *socket.UDPSocket
	service       delivery.Service
	metricsServer *http.Server
	metricsAddr   net.Addr
}

func New(config config.Config) *Application {
	return &Application{
		config: config,
	}
}

// Start binds the socket and starts the delivery loops, which end when ctx is
// done or Stop is called.
func (a *Application) Start(ctx context.Context) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.service != nil {
		return delivery.ErrAlreadyStarted
	}

	sock, err := socket.Listen(a.config.BindAddress)
	if err != nil {
		return err
	}

	recorder := metrics.NewDummy()
	if a.config.MetricsAddress != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		recorder = metrics.NewPrometheus(registry, a.config.NodeID.String())
		if err := a.serveMetrics(registry); err != nil {
			sock.Close()
			return err
		}
	}

	service := delivery.NewService(a.config.DeliveryOptions(), sock, encoder.NewEncoderDecoder(), recorder)
	if err := service.Start(ctx); err != nil {
		return multierr.Append(err, sock.Close())
	}

	a.socket = sock
	a.service = service
	log.Printf("Node %s listening on %s\n", a.config.NodeID, sock.LocalAddr())
	return nil
}

func (a *Application) serveMetrics(registry *prometheus.Registry) error {
	listener, err := net.Listen("tcp", a.config.MetricsAddress)
	if err != nil {
		return fmt.Errorf("listening for metrics on %s: %w", a.config.MetricsAddress, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	a.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: shutdownTimeout}
	a.metricsAddr = listener.Addr()

	go func(server *http.Server) {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to serve metrics: %s\n", err)
		}
	}(a.metricsServer)
	log.Printf("Serving metrics on http://%s/metrics\n", a.metricsAddr)
	return nil
}

// Send queues phrase for reliable delivery to to.
func (a *Application) Send(phrase string, to netip.AddrPort) error {
	service, err := a.running()
	if err != nil {
		return err
	}
	return service.QueueForSend(packets.Talk{Phrase: phrase}, to)
}

// Receive returns every packet received since the last call.
func (a *Application) Receive() []delivery.AddressedPacket {
	service, err := a.running()
	if err != nil {
		return []delivery.AddressedPacket{}
	}
	return service.GetPackets()
}

func (a *Application) Stats() delivery.Stats {
	service, err := a.running()
	if err != nil {
		return delivery.Stats{}
	}
	return service.Stats()
}

// Stop ends the delivery loops, closes the socket and the metrics server.
func (a *Application) Stop() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.service == nil {
		return ErrNotRunning
	}

	err := a.service.Stop()
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = multierr.Append(err, a.metricsServer.Shutdown(ctx))
		a.metricsServer = nil
		a.metricsAddr = nil
	}
	a.service = nil
	a.socket = nil
	return err
}

// LocalAddr returns the bound address of the socket, invalid when not running.
func (a *Application) LocalAddr() netip.AddrPort {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.socket == nil {
		return netip.AddrPort{}
	}
	return a.socket.LocalAddr()
}

// MetricsAddr returns the address of the metrics server, nil when disabled.
func (a *Application) MetricsAddr() net.Addr {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.metricsAddr
}

func (a *Application) running() (delivery.Service, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.service == nil {
		return nil, ErrNotRunning
	}
	return a.service, nil
}
