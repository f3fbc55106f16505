// Package daemon assembles the node. It opens the stores named in the
// settings, builds the validator, blockchain, mempool and miner, and runs
// them under one service manager with health and metrics endpoints.
package daemon

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emberchain/embernode/errors"
	"github.com/emberchain/embernode/settings"
	"github.com/emberchain/embernode/ulogger"
	"github.com/emberchain/embernode/util/servicemanager"
)

var pprofRegistered atomic.Bool

// Daemon owns the lifecycle of a node: store handles, the service manager
// and the health HTTP server. A Daemon is started once; Stop may be called
// from any goroutine.
type Daemon struct {
	Ctx            context.Context
	ServiceManager *servicemanager.ServiceManager

	doneCh        chan struct{}
	closeDoneOnce sync.Once
	stopCh        chan struct{} // closed when Start has fully wound down
	closeStopOnce sync.Once
	started       atomic.Bool

	serverMu sync.Mutex
	server   *http.Server

	stores   daemonStores
	services daemonServices

	loggerFactory func(serviceName string) ulogger.Logger
}

func New(opts ...Option) *Daemon {
	d := &Daemon{
		Ctx:    context.Background(),
		doneCh: make(chan struct{}),
		stopCh: make(chan struct{}),
		loggerFactory: func(serviceName string) ulogger.Logger {
			return ulogger.New(serviceName)
		},
	}

	for _, opt := range opts {
		opt(d)
	}

	d.ServiceManager = servicemanager.NewServiceManager(d.Ctx, d.loggerFactory("ServiceManager"))

	return d
}

// Start runs the node until its services stop or Stop is called. When a
// readyCh is given it is closed once every service has signaled readiness.
func (d *Daemon) Start(logger ulogger.Logger, args []string, tSettings *settings.Settings, readyCh ...chan struct{}) {
	d.started.Store(true)

	if hasArg(args, "-wait_for_postgres=1") {
		storeURL := tSettings.BlockChain.StoreURL
		if storeURL != nil && storeURL.Scheme == "postgres" {
			if err := waitForPostgresToStart(logger, storeURL.Host); err != nil {
				logger.Errorf("error waiting for postgres: %v", err)
				return
			}
		}
	}

	sm := d.ServiceManager

	var readyChInternal chan struct{}
	if len(readyCh) > 0 {
		readyChInternal = readyCh[0]
	}

	if err := d.startServices(sm.Ctx, logger, tSettings, sm, args, readyChInternal); err != nil {
		logger.Errorf("error starting services: %v", err)
		sm.ForceShutdown()
		d.closeDoneOnce.Do(func() { close(d.doneCh) })
	}

	mux := http.NewServeMux()
	healthFunc := func(liveness bool) func(http.ResponseWriter, *http.Request) {
		return func(w http.ResponseWriter, r *http.Request) {
			status, details, err := sm.HealthHandler(sm.Ctx, liveness)
			if err != nil {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(details))

				return
			}

			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(details))
		}
	}
	mux.HandleFunc("/health", healthFunc(false))
	mux.HandleFunc("/health/readiness", healthFunc(false))
	mux.HandleFunc("/health/liveness", healthFunc(true))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              tSettings.HealthListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	d.serverMu.Lock()
	d.server = server
	d.serverMu.Unlock()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("error starting health server: %v", err)
		}
	}()

	logger.Infof("Health and metrics listening on http://localhost%s/health", tSettings.HealthListenAddress)

	waitErr := make(chan error, 1)

	go func() {
		waitErr <- sm.Wait()
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			logger.Errorf("services failed: %v", err)
		}

		d.shutdownServer(logger)
		d.closeStores(logger)
	case <-d.doneCh:
		logger.Infof("daemon shutdown requested")

		d.shutdownServer(logger)
		sm.ForceShutdown()

		if err := <-waitErr; err != nil {
			logger.Errorf("error during service shutdown: %v", err)
		}

		d.closeStores(logger)
		logger.Infof("daemon shutdown completed")
	}

	d.closeStopOnce.Do(func() { close(d.stopCh) })
}

// Stop asks a running daemon to shut down and waits for Start to wind down.
// The default wait is ten seconds.
func (d *Daemon) Stop(timeout ...time.Duration) error {
	logger := d.loggerFactory("daemon")

	d.shutdownServer(logger)
	d.closeDoneOnce.Do(func() { close(d.doneCh) })

	if !d.started.Load() {
		d.closeStopOnce.Do(func() { close(d.stopCh) })
		return nil
	}

	shutdownTimeout := 10 * time.Second
	if len(timeout) > 0 {
		shutdownTimeout = timeout[0]
	}

	select {
	case <-d.stopCh:
		return nil
	case <-time.After(shutdownTimeout):
		for _, name := range d.ServiceManager.ServiceNames() {
			logger.Warnf("service %s is still running", name)
		}

		return errors.NewProcessingError("timeout waiting for services to stop after %v", shutdownTimeout)
	}
}

func (d *Daemon) shutdownServer(logger ulogger.Logger) {
	d.serverMu.Lock()
	defer d.serverMu.Unlock()

	if d.server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.server.Shutdown(ctx); err != nil {
		logger.Warnf("error shutting down health server: %v", err)
	}

	d.server = nil
}

func hasArg(args []string, arg string) bool {
	for _, a := range args {
		if a == arg {
			return true
		}
	}

	return false
}

func waitForPostgresToStart(logger ulogger.Logger, address string) error {
	timeout := time.Minute

	logger.Infof("Waiting for PostgreSQL to be ready at %s", address)

	deadline := time.Now().Add(timeout)

	for {
		conn, err := net.DialTimeout("tcp", address, time.Second)
		if err != nil {
			if time.Now().After(deadline) {
				return errors.NewStorageError("timed out waiting for PostgreSQL to start", err)
			}

			logger.Infof("PostgreSQL is not up yet - waiting")
			time.Sleep(time.Second)

			continue
		}

		_ = conn.Close()

		logger.Infof("PostgreSQL is up - ready to go!")

		return nil
	}
}
