package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/cowprotocol/etherum-log-size/app/services/sampler/handlers"
	"github.com/cowprotocol/etherum-log-size/foundation/events"
	"github.com/cowprotocol/etherum-log-size/foundation/logger"
	"github.com/cowprotocol/etherum-log-size/foundation/logstats/ethrpc"
	"github.com/cowprotocol/etherum-log-size/foundation/logstats/sampler"
	"github.com/cowprotocol/etherum-log-size/foundation/logstats/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("SAMPLER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// Values in a local .env file are loaded into the environment first so
	// they can be picked up below. The file is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:30s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		Node struct {
			URL            string        `conf:"env:NODE_URL,required,mask"`
			DialTimeout    time.Duration `conf:"default:10s"`
			RequestTimeout time.Duration `conf:"default:30s"`
		}
		Sampler struct {
			OutputPath   string `conf:"default:out"`
			SafetyMargin uint64 `conf:"default:64"`
			BatchSize    uint64 `conf:"default:100"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "samples random blocks and records their log statistics",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "SAMPLER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Sample File Support

	// The sample file is opened for append so every restart builds on the
	// samples collected by prior runs.
	strg, err := storage.New(cfg.Sampler.OutputPath)
	if err != nil {
		return &sampler.SetupError{Op: "opening output", Err: err}
	}
	defer strg.Close()

	log.Infow("startup", "status", "sample file opened", "path", cfg.Sampler.OutputPath, "records", strg.Count())

	// =========================================================================
	// Node Support

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Node.DialTimeout)
	defer cancel()

	client, err := ethrpc.Dial(ctx, cfg.Node.URL)
	if err != nil {
		return &sampler.SetupError{Op: "connecting to node", Err: err}
	}
	defer client.Close()

	// =========================================================================
	// Sampler Support

	// The sampler accepts a function of this signature to allow the
	// application to log. These messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The maximum block is computed once here from the chain head and is not
	// refreshed, so the distance to the real head grows over a long run.
	smp, err := sampler.New(ctx, sampler.Config{
		Reader:         client,
		Writer:         strg,
		SafetyMargin:   cfg.Sampler.SafetyMargin,
		BatchSize:      cfg.Sampler.BatchSize,
		RequestTimeout: cfg.Node.RequestTimeout,
		EvHandler:      ev,
	})
	if err != nil {
		return err
	}

	// Make a channel to receive the result of the sampling loop. Use a
	// buffered channel so the goroutine can exit if we don't collect it.
	samplerErrors := make(chan error, 1)

	go func() {
		samplerErrors <- smp.Run()
	}()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.
	debugMux := handlers.DebugMux(build, log, smp)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Sampler:  smp,
		Storage:  strg,
		Evts:     evts,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		smp.Shutdown()
		if serr := <-samplerErrors; serr != nil {
			log.Errorw("shutdown", "status", "sampler stopped", "ERROR", serr)
		}
		return fmt.Errorf("server error: %w", err)

	case err := <-samplerErrors:
		public.Close()
		return fmt.Errorf("sampler error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Stop the sampling loop. A fetch in flight completes first and the
		// sample file is flushed and synced before Run returns.
		log.Infow("shutdown", "status", "stopping sampler")
		smp.Shutdown()
		if err := <-samplerErrors; err != nil {
			return fmt.Errorf("sampler error: %w", err)
		}

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
