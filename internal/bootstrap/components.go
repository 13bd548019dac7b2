// internal/bootstrap/components.go
package bootstrap

import (
	"fmt"

	"github.com/benbjohnson/clock"

	"wifidog-auth/internal/audit"
	"wifidog-auth/internal/common/config"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/common/observability"
	"wifidog-auth/internal/server"
	"wifidog-auth/internal/storage"
	"wifidog-auth/internal/users"
	"wifidog-auth/internal/wifidog/bandwidth"
	"wifidog-auth/internal/wifidog/gateway"
	"wifidog-auth/internal/wifidog/protocol"
	"wifidog-auth/internal/wifidog/session"
	"wifidog-auth/internal/wifidog/token"
)

// Components is the wired set of services shared by the server and the tools.
type Components struct {
	Sessions  *session.Store
	Gateways  *gateway.Registry
	Bandwidth *bandwidth.Accumulator
	Protocol  *protocol.Dispatcher
	Users     *users.Directory

	cfg   *config.Config
	store storage.Store
	clock clock.Clock
	log   logger.Logger
}

// NewComponents validates the per-component configuration and wires every
// service on top of store. A nil sink discards auth log entries.
func NewComponents(cfg *config.Config, store storage.Store, sink audit.Sink, clk clock.Clock, log logger.Logger) (*Components, error) {
	if clk == nil {
		clk = clock.New()
	}

	sessionCfg := session.ConfigFrom(cfg.Session)
	if err := sessionCfg.Validate(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	gatewayCfg := gateway.ConfigFrom(cfg.Gateway)
	if err := gatewayCfg.Validate(); err != nil {
		return nil, fmt.Errorf("gateway config: %w", err)
	}
	bandwidthCfg := bandwidth.ConfigFrom(cfg.Session)
	if err := bandwidthCfg.Validate(); err != nil {
		return nil, fmt.Errorf("bandwidth config: %w", err)
	}
	protocolCfg := protocol.ConfigFrom(cfg.Session, cfg.Portal)
	if err := protocolCfg.Validate(); err != nil {
		return nil, fmt.Errorf("portal config: %w", err)
	}

	c := &Components{
		Sessions:  session.NewStore(sessionCfg, store.Sessions(), token.NewIssuer(token.DefaultConfig()), clk, log),
		Gateways:  gateway.NewRegistry(gatewayCfg, store.Gateways(), log),
		Bandwidth: bandwidth.NewAccumulator(bandwidthCfg, store.Bandwidth(), log),
		Users:     users.NewDirectory(store.Users(), clk, log),
		cfg:       cfg,
		store:     store,
		clock:     clk,
		log:       log,
	}
	c.Protocol = protocol.NewDispatcher(protocolCfg, c.Sessions, c.Bandwidth, c.Gateways, sink, clk, log)
	return c, nil
}

// Server builds the HTTP adapter over the wired components.
func (c *Components) Server(obs *observability.Observability) *server.Server {
	return server.New(server.ConfigFrom(c.cfg), c.Protocol, c.Users, c.Sessions, c.store, obs, c.clock, c.log)
}
