package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/dojo/pkg/auth"
	"github.com/rhuss/dojo/pkg/config"
)

func TestBuildAuthChain(t *testing.T) {
	secret := strings.Repeat("s", 32)
	tests := []struct {
		name   string
		cfg    config.AuthConfig
		bearer string
		want   auth.Decision
	}{
		{"none allows anonymous", config.AuthConfig{Type: "none"}, "", auth.Yes},
		{"apikey accepts key", config.AuthConfig{Type: "apikey", APIKeys: []config.APIKeyConfig{{Key: "k1", Subject: "desk"}}}, "k1", auth.Yes},
		{"apikey rejects missing", config.AuthConfig{Type: "apikey", APIKeys: []config.APIKeyConfig{{Key: "k1", Subject: "desk"}}}, "", auth.No},
		{"token falls back to api key", config.AuthConfig{Type: "token", Token: config.TokenConfig{Secret: secret}, APIKeys: []config.APIKeyConfig{{Key: "k1", Subject: "desk"}}}, "k1", auth.Yes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := buildAuthChain(tt.cfg)
			if err != nil {
				t.Fatalf("buildAuthChain: %v", err)
			}
			r := httptest.NewRequest("POST", "/v1/execute", nil)
			if tt.bearer != "" {
				r.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			if got := chain.Authenticate(context.Background(), r).Decision; got != tt.want {
				t.Errorf("decision = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := buildAuthChain(config.AuthConfig{Type: "ldap"}); err == nil {
		t.Error("unknown auth type accepted")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("log output = %q", out)
	}

	if _, err := newLogger(config.LoggingConfig{Level: "info", Format: "xml"}, &buf); err == nil {
		t.Error("xml format accepted")
	}
}

func TestRootCommands(t *testing.T) {
	cmd := newRootCmd()
	want := map[string]bool{"serve": false, "mcp": false, "exec": false, "probe": false, "judge": false, "token": false}
	for _, c := range cmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}
