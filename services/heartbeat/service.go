package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"smartport-go/bus"
	"smartport-go/types"
	"smartport-go/x/logx"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicPortStates      = bus.T("port", "+", "state")

	// TopicBeat carries a Beat on every tick.
	TopicBeat = bus.T("heartbeat")
)

const defaultInterval = 2 * time.Second

// Beat is published on every tick.
type Beat struct {
	TSms      int64 `json:"ts_ms"`
	Installed int   `json:"installed"`
}

type Service struct {
	logger   *slog.Logger
	interval time.Duration
}

func New(logger *slog.Logger) *Service {
	if logger == nil {
		logger = logx.NewNop()
	}
	return &Service{logger: logx.Component(logger, "heartbeat"), interval: defaultInterval}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)
	portSub := conn.Subscribe(topicPortStates)
	defer conn.Unsubscribe(portSub)

	installed := map[int]bool{}
	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick, port and config changes
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("heartbeat service stopping")
			return
		case t := <-tick.C:
			beat := Beat{TSms: t.UnixMilli(), Installed: len(installed)}
			s.logger.Info("heartbeat", "installed", beat.Installed)
			conn.Publish(conn.NewMessage(TopicBeat, beat, false))
		case msg, ok := <-portSub.Channel():
			if !ok {
				return
			}
			if st, ok := msg.Payload.(types.PortState); ok {
				if st.Installed() {
					installed[st.Port] = true
				} else {
					delete(installed, st.Port)
				}
			}
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			if iv, ok := interval(msg.Payload); ok && iv > 0 && iv != s.interval {
				s.interval = iv
				tick.Reset(iv)
				s.logger.Info("heartbeat interval changed", "interval", iv.String())
			}
		}
	}
}

// interval accepts the typed config section or a loose map with seconds.
func interval(payload any) (time.Duration, bool) {
	switch p := payload.(type) {
	case types.HeartbeatConfig:
		return p.Interval, true
	case map[string]any:
		if v, ok := p["interval"].(float64); ok {
			return time.Duration(v * float64(time.Second)), true
		}
	}
	return 0, false
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
