package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/power-saver/power-saver/internal/tracing"
	"github.com/power-saver/power-saver/saver"
	"github.com/power-saver/power-saver/saver/sysfs"
)

var (
	cpuRoot       string        // cpufreq sysfs root
	devfreqRoot   string        // devfreq class root
	backlightRoot string        // backlight class root
	asoundRoot    string        // ALSA procfs root
	pollInterval  time.Duration // backlight and PCM poll period
	rescanPeriod  time.Duration // devfreq rescan period (0 = scan once)
	metricsAddr   string        // Prometheus listen address (empty = disabled)
	otlpEndpoint  string        // OTLP gRPC collector (empty = no-op tracer)
	otlpInsecure  bool          // plaintext OTLP
	realtime      bool          // SCHED_FIFO worker
)

// runCmd runs the engine against the local system until interrupted
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the power saver against the local sysfs",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg := loadConfig()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTracing, err := tracing.Init(ctx, "power-saver", otlpEndpoint, otlpInsecure)
		if err != nil {
			logrus.Fatalf("unable to set up tracing: %v", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				logrus.Warnf("tracing shutdown: %v", err)
			}
		}()

		bus := saver.NewDisplayBus()
		engine, err := saver.NewEngine(cfg, sysfs.NewCPUFreq(cpuRoot), bus, saver.Options{Realtime: realtime})
		if err != nil {
			logrus.Fatalf("unable to build engine: %v", err)
		}
		if err := engine.Start(ctx); err != nil {
			logrus.Fatalf("unable to start engine: %v", err)
		}
		defer engine.Stop()

		scanner := sysfs.NewDevfreqScanner(devfreqRoot, engine.RegisterBandwidthDevice)
		if n, err := scanner.Scan(); err != nil {
			logrus.Warnf("devfreq scan: %v", err)
		} else {
			logrus.Infof("devfreq: %d devices found", n)
		}

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return sysfs.NewBacklightWatcher(backlightRoot, pollInterval, bus).Run(gCtx)
		})
		g.Go(func() error {
			return sysfs.NewPCMWatcher(asoundRoot, pollInterval, engine.StreamListener()).Run(gCtx)
		})
		if rescanPeriod > 0 {
			g.Go(func() error {
				ticker := time.NewTicker(rescanPeriod)
				defer ticker.Stop()
				for {
					select {
					case <-gCtx.Done():
						return nil
					case <-ticker.C:
						if _, err := scanner.Scan(); err != nil {
							logrus.Debugf("devfreq rescan: %v", err)
						}
					}
				}
			})
		}
		if metricsAddr != "" {
			srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
			g.Go(func() error {
				logrus.Infof("serving metrics on %s", metricsAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gCtx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(sctx)
			})
		}

		logrus.Info("power saver running")
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			logrus.Errorf("power saver exited: %v", err)
			return
		}
		logrus.Info("power saver exiting")
	},
}

func init() {
	runCmd.Flags().StringVar(&cpuRoot, "cpu-root", sysfs.DefaultCPURoot, "cpufreq sysfs root")
	runCmd.Flags().StringVar(&devfreqRoot, "devfreq-root", sysfs.DefaultDevfreqRoot, "devfreq class root")
	runCmd.Flags().StringVar(&backlightRoot, "backlight-root", sysfs.DefaultBacklightRoot, "backlight class root")
	runCmd.Flags().StringVar(&asoundRoot, "asound-root", sysfs.DefaultASoundRoot, "ALSA procfs root")
	runCmd.Flags().DurationVar(&pollInterval, "poll-interval", 250*time.Millisecond, "Backlight and PCM poll period")
	runCmd.Flags().DurationVar(&rescanPeriod, "devfreq-rescan", 30*time.Second, "Devfreq rescan period (0 = scan once)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus listen address, e.g. :9101")
	runCmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector endpoint")
	runCmd.Flags().BoolVar(&otlpInsecure, "otlp-insecure", true, "Use plaintext gRPC for OTLP")
	runCmd.Flags().BoolVar(&realtime, "realtime", true, "Run the update worker at SCHED_FIFO priority")
}
