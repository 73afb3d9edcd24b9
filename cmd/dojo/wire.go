package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/rhuss/dojo/pkg/app"
	"github.com/rhuss/dojo/pkg/auth"
	"github.com/rhuss/dojo/pkg/auth/apikey"
	"github.com/rhuss/dojo/pkg/auth/noop"
	"github.com/rhuss/dojo/pkg/auth/token"
	"github.com/rhuss/dojo/pkg/completion"
	"github.com/rhuss/dojo/pkg/config"
	"github.com/rhuss/dojo/pkg/engine"
	"github.com/rhuss/dojo/pkg/judge"
	"github.com/rhuss/dojo/pkg/probe"
	"github.com/rhuss/dojo/pkg/sandbox"
	transporthttp "github.com/rhuss/dojo/pkg/transport/http"
)

// components is the wired engine shared by every subcommand.
type components struct {
	cfg        *config.Config
	logger     *slog.Logger
	prober     *probe.Prober
	engine     *engine.Engine
	completion *completion.Client
	judge      *judge.Client
	app        *app.App
}

// setup loads the configuration and wires every component.
func setup(opts *rootOptions) (*components, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}

	flags, err := cfg.Toolchains.Flags()
	if err != nil {
		return nil, err
	}

	sb := sandbox.New(sandbox.Config{
		GracePeriod:    cfg.Execution.GracePeriod,
		MaxOutputBytes: cfg.Execution.MaxOutputBytes,
		Logger:         logger,
	})
	prober := probe.New(probe.Config{
		Toolchains: probe.DefaultToolchains(cfg.Toolchains.Commands()),
		Timeout:    cfg.Toolchains.ProbeTimeout,
		Runner:     sb,
		Logger:     logger,
	})
	eng, err := engine.New(sb, prober, engine.Config{
		MaxConcurrent:  cfg.Execution.MaxConcurrent,
		QueueSize:      cfg.Execution.QueueSize,
		DefaultTimeout: cfg.Execution.DefaultTimeout,
		CompileTimeout: cfg.Execution.CompileTimeout,
		WorkDir:        cfg.Execution.WorkDir,
		KeepWorkspaces: cfg.Execution.KeepWorkspaces,
		Flags:          flags,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	cc := completion.NewClient(completion.Config{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.RequestTimeout,
	})
	jc := judge.New(cc, judge.Config{
		Policy:            cfg.AI.Policy(),
		RequestsPerMinute: cfg.AI.RequestsPerMinute,
		Logger:            logger,
	})
	if !cc.HasAPIKey() {
		logger.Warn("no AI API key configured; judge and generate calls will fail with an auth error")
	}

	return &components{
		cfg:        cfg,
		logger:     logger,
		prober:     prober,
		engine:     eng,
		completion: cc,
		judge:      jc,
		app:        app.New(eng, prober, jc, logger),
	}, nil
}

func (c *components) Close() {
	c.engine.Close()
	_ = c.completion.Close()
}

// serverConfig maps the server, auth and observability sections.
func (c *components) serverConfig() (transporthttp.ServerConfig, error) {
	cfg := c.cfg
	sc := transporthttp.DefaultServerConfig()
	sc.Addr = net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	sc.MaxBodySize = cfg.Server.MaxBodyBytes
	sc.ReadTimeout = cfg.Server.ReadTimeout
	sc.WriteTimeout = cfg.Server.WriteTimeout
	if sc.WriteTimeout == 0 {
		sc.WriteTimeout = cfg.MinWriteTimeout()
	}
	sc.MetricsPath = ""
	if cfg.Observability.Metrics.Enabled {
		sc.MetricsPath = cfg.Observability.Metrics.Path
	}

	chain, err := buildAuthChain(cfg.Auth)
	if err != nil {
		return sc, err
	}
	sc.Auth = chain
	if rpm := cfg.Auth.RateLimit.RequestsPerMinute; rpm > 0 {
		sc.RateLimiter = auth.NewSubjectLimiter(nil, rpm)
	}
	return sc, nil
}

func buildAuthChain(cfg config.AuthConfig) (*auth.Chain, error) {
	switch cfg.Type {
	case "", "none":
		return &auth.Chain{Authenticators: []auth.Authenticator{noop.Authenticator{}}, Default: auth.No}, nil
	case "apikey":
		return &auth.Chain{Authenticators: []auth.Authenticator{apikey.New(apiKeys(cfg.APIKeys))}, Default: auth.No}, nil
	case "token":
		ta, err := token.New(tokenConfig(cfg.Token))
		if err != nil {
			return nil, err
		}
		chain := &auth.Chain{Authenticators: []auth.Authenticator{ta}, Default: auth.No}
		if len(cfg.APIKeys) > 0 {
			chain.Authenticators = append(chain.Authenticators, apikey.New(apiKeys(cfg.APIKeys)))
		}
		return chain, nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}

func apiKeys(entries []config.APIKeyConfig) []apikey.Key {
	keys := make([]apikey.Key, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, apikey.Key{
			Key:      e.Key,
			Identity: auth.Identity{Subject: e.Subject, Tier: e.ServiceTier},
		})
	}
	return keys
}

func tokenConfig(cfg config.TokenConfig) token.Config {
	return token.Config{
		Secret:   []byte(cfg.Secret),
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
	}
}
