package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/aipc-tools/powerd/pkg/config"
	"github.com/aipc-tools/powerd/pkg/events"
	"github.com/aipc-tools/powerd/pkg/powercfg"
	"github.com/aipc-tools/powerd/pkg/powersource"
	"github.com/aipc-tools/powerd/pkg/version"
)

// NewRouter builds the HTTP API around engine. Browsers are limited to
// allowedOrigins.
func NewRouter(engine *Engine, hub *events.EventHub, allowedOrigins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	a := &api{engine: engine, hub: hub}

	router := gin.New()
	router.Use(requestID())
	router.Use(recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.Use(corsMiddleware(allowedOrigins))

	power := router.Group("/api/power")
	power.GET("/status", a.getStatus)
	power.POST("/set-plan", a.setPlan)
	power.POST("/set-mode", a.setMode)
	power.GET("/events", a.streamEvents)

	router.GET("/health", getHealth)
	router.GET("/version", getVersion)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// Run starts the reconcile loop and the HTTP API, and blocks until SIGINT
// or SIGTERM. addr overrides the configured listen address when set.
func Run(configPath string, addr string) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to parse config during startup")
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	schedule, err := ParseSchedule(conf.ReconcileSchedule())
	if err != nil {
		return err
	}

	runner := powercfg.NewExecRunner(conf.CommandTimeout())
	if err := runner.SetConsoleEncoding(conf.ConsoleEncoding()); err != nil {
		return err
	}

	names, err := powercfg.LoadNames(conf.PlanNamesFile())
	if err != nil {
		return err
	}

	planControl := powercfg.Supported() && !conf.SimulatePlanControl()
	if !planControl {
		logrus.Warn("power plan control unavailable, plan changes will be simulated")
	}
	probe := powercfg.NewProbe(runner, planControl, names)
	applier := powercfg.NewApplier(runner, planControl)

	hub := events.NewEventHub()
	engine := NewEngine(probe, applier, powersource.New(), hub)

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := reload(conf, runner, probe); err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
		}
	}()

	if addr == "" {
		addr = net.JoinHostPort("0.0.0.0", strconv.Itoa(conf.Port()))
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", addr)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Request contexts derive from ctx so event streams end on shutdown.
	srv := &http.Server{
		Handler:           NewRouter(engine, hub, conf.AllowedOrigins()),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":    l.Addr().String(),
			"version": version.Version,
		}).Info("http server listening")
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Debugln("reconcile loop starts")
		engine.Run(ctx, schedule)
		logrus.Debugln("reconcile loop stopped")
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	cancel()

	logrus.Info("shutting down http server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	shutdownCancel()

	logrus.Info("waiting for reconcile loop")
	wg.Wait()

	logrus.Info("exiting")
	return nil
}

// reload re-reads the config file and pushes the parts that can change at
// runtime into the running components. Port, origins and schedule need a
// restart.
func reload(conf config.Config, runner *powercfg.ExecRunner, probe *powercfg.Probe) error {
	if err := conf.Load(); err != nil {
		return err
	}

	names, err := powercfg.LoadNames(conf.PlanNamesFile())
	if err != nil {
		return err
	}
	if err := runner.SetConsoleEncoding(conf.ConsoleEncoding()); err != nil {
		return err
	}

	probe.SetNames(names)
	runner.SetTimeout(conf.CommandTimeout())

	return nil
}
