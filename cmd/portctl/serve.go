package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"smartport-go/bus"
	"smartport-go/services/config"
	"smartport-go/services/heartbeat"
	"smartport-go/services/status"
	"smartport-go/services/vdml"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the controller until interrupted",
	Long: `Plugs the configured ports, publishes config and port state on the bus,
runs the heartbeat and, when status.enable is set, serves the port table over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cmd, cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b := bus.NewBus(32)
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		ctl, err := vdml.NewFromConfig(cfg,
			vdml.WithBus(b),
			vdml.WithRegisterer(promReg),
			vdml.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		defer ctl.Close()

		config.NewConfigService(cfg, logger).Publish(b.NewConnection("config"))
		if err := heartbeat.New(logger).Start(ctx, b.NewConnection("heartbeat")); err != nil {
			return err
		}

		logger.Info("controller running", "name", cfg.Controller.Name, "ports", len(cfg.Ports))
		if cfg.Status.Enable {
			return status.Serve(ctx, cfg.Status.Addr, status.NewHandler(ctl, promReg, logger), logger)
		}
		<-ctx.Done()
		logger.Info("controller stopping")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

