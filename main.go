package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"smartport-go/bus"
	"smartport-go/services/config"
	"smartport-go/services/heartbeat"
	"smartport-go/services/vdml"
	"smartport-go/types"
	"smartport-go/x/logx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadProfile(config.DefaultProfile)
	if err != nil {
		logx.New(logx.ParseLevel("error"), logx.FormatText).Error("boot failed", "err", err)
		os.Exit(1)
	}
	logger := logx.New(logx.ParseLevel(cfg.Log.Level), logx.Format(cfg.Log.Format))
	logger.Info("boot", "profile", config.DefaultProfile)

	b := bus.NewBus(16)
	uiConn := b.NewConnection("ui")

	// log every port change for diagnostics
	mon := uiConn.Subscribe(bus.T("port", "#"))
	go func() {
		for m := range mon.Channel() {
			if st, ok := m.Payload.(types.PortState); ok {
				logger.Info("port changed", "port", st.Port, "type", st.Type.String(), "gen", st.Generation)
			}
		}
	}()

	config.NewConfigService(cfg, logger).Start(ctx, b.NewConnection("config"))

	ctl, err := vdml.NewFromConfig(cfg, vdml.WithBus(b), vdml.WithLogger(logger))
	if err != nil {
		logger.Error("controller failed", "err", err)
		os.Exit(1)
	}
	defer ctl.Close()

	if err := heartbeat.New(logger).Start(ctx, b.NewConnection("heartbeat")); err != nil {
		logger.Error("heartbeat failed", "err", err)
		os.Exit(1)
	}

	<-ctx.Done()
	uiConn.Disconnect()
	logger.Info("shutdown")
}
