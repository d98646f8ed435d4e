package app

import (
	"log/slog"

	"github.com/rbright/streamctl/internal/channel"
	"github.com/rbright/streamctl/internal/config"
	"github.com/rbright/streamctl/internal/monitor"
	"github.com/rbright/streamctl/internal/registry"
	"github.com/rbright/streamctl/internal/session"
)

// engine bundles one channel with the monitor and controller that share it.
type engine struct {
	channel    *channel.Channel
	controller *session.Controller
}

// newDirectEngine serves one-shot commands. Auto-connect stays off so a read-only
// status or a manual connect never issues a Connect of its own.
func newDirectEngine(cfg config.Config, logger *slog.Logger) engine {
	cfg.Poll.AutoConnect = false
	return newEngine(cfg, logger)
}

func newEngine(cfg config.Config, logger *slog.Logger) engine {
	ch := channel.New(channel.Options{
		Network:        cfg.Control.Network,
		Address:        cfg.Control.Address,
		DialTimeout:    cfg.Control.DialTimeout(),
		CommandTimeout: cfg.Control.CommandTimeout(),
		Logger:         logger,
	})
	mon := monitor.New(ch, cfg.Control.Liveness(), logger)
	ctrl := session.NewController(ch, mon, registry.New(), session.Options{
		Logger:         logger,
		AutoConnect:    cfg.Poll.AutoConnect,
		CooldownCycles: cfg.Poll.CooldownCycles,
	})
	return engine{channel: ch, controller: ctrl}
}

func (e engine) Close() {
	_ = e.channel.Close()
}
