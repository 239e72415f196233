// Package daemon wires the long-running process together: single-instance
// lock, job store, processing worker and the HTTP API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"tscribe/internal/api"
	"tscribe/internal/config"
	"tscribe/internal/jobs"
	"tscribe/internal/logging"
	"tscribe/internal/media"
	"tscribe/internal/pipeline"
	"tscribe/internal/recognize"
	"tscribe/internal/shutdown"
	"tscribe/internal/worker"
)

const lockFileName = "tscribed.lock"

// Daemon owns all long-lived components of the transcription service.
type Daemon struct {
	logger *slog.Logger
	cfg    *config.Config
	signal *shutdown.Signal

	store  *jobs.Store
	worker *worker.Worker
	server *apiServer
	lock   *flock.Flock

	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	errCh     chan error
	boundAddr string
}

// New assembles a daemon. Nothing starts running until Start.
func New(logger *slog.Logger, cfg *config.Config, signal *shutdown.Signal) (*Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	source := media.NewClient(cfg)
	engine := recognize.NewEngine(recognize.ConfigFromApp(cfg))
	processor := pipeline.NewProcessor(logger, cfg, store, source, engine, signal)
	service := api.NewJobService(logger, cfg, store)

	return &Daemon{
		logger: logging.NewComponentLogger(logger, "daemon"),
		cfg:    cfg,
		signal: signal,
		store:  store,
		worker: worker.New(logger, cfg, store, processor),
		server: newAPIServer(logger, cfg, service),
		lock:   flock.New(filepath.Join(cfg.Paths.LogDir, lockFileName)),
		errCh:  make(chan error, 1),
	}, nil
}

// Start acquires the single-instance lock and launches the worker loop and
// the HTTP API. It returns immediately; the daemon runs until Stop.
func (d *Daemon) Start(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already started")
	}

	locked, err := d.lock.TryLock()
	if err != nil {
		d.running.Store(false)
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		d.running.Store(false)
		return errors.New("another instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	addrCh := make(chan string, 1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.server.listenAndServe(addrCh); err != nil {
			d.logger.Error("api server failed", logging.Error(err))
			select {
			case d.errCh <- err:
			default:
			}
		}
	}()

	addr, ok := <-addrCh
	if !ok {
		cancel()
		d.wg.Wait()
		_ = d.lock.Unlock()
		d.running.Store(false)
		return <-d.errCh
	}
	d.boundAddr = addr

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.worker.Run(runCtx)
	}()

	d.logger.Info("daemon started", logging.String("api_addr", addr))
	return nil
}

// Addr returns the API's bound address once Start has succeeded.
func (d *Daemon) Addr() string {
	return d.boundAddr
}

// Stop shuts down the worker and API server, closes the store and releases
// the instance lock. Safe to call once after a successful Start.
func (d *Daemon) Stop(ctx context.Context) error {
	if !d.running.CompareAndSwap(true, false) {
		return nil
	}
	d.logger.Info("daemon stopping")

	d.signal.Request()
	d.cancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	var firstErr error
	if err := d.server.shutdown(shutdownCtx); err != nil {
		firstErr = fmt.Errorf("shutdown api server: %w", err)
	}
	d.wg.Wait()

	if err := d.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close job store: %w", err)
	}
	if err := d.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("release instance lock: %w", err)
	}
	d.logger.Info("daemon stopped")
	return firstErr
}
