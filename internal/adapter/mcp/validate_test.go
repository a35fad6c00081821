package mcp

import (
	"errors"
	"log/slog"
	"testing"

	"agentdesk/internal/domain"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(slog.Default())
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestCheckAcceptsWellFormedConnector(t *testing.T) {
	v := newTestValidator(t)
	conn := domain.MCPConnector{
		Name:      "docs",
		Transport: "http",
		URL:       "https://mcp.example.com/docs",
		Headers:   map[string]string{"X-Key": "abc"},
		Enabled:   true,
	}
	if err := v.Check(conn); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestCheckRejectsBadConnectors(t *testing.T) {
	v := newTestValidator(t)

	cases := []struct {
		name string
		conn domain.MCPConnector
	}{
		{"missing name", domain.MCPConnector{Transport: "http", URL: "https://x.test"}},
		{"bad transport", domain.MCPConnector{Name: "n", Transport: "grpc", URL: "https://x.test"}},
		{"bad url scheme", domain.MCPConnector{Name: "n", Transport: "http", URL: "ftp://x.test"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Check(tc.conn)
			if !errors.Is(err, domain.ErrConnectorInvalid) {
				t.Fatalf("err = %v, want ErrConnectorInvalid", err)
			}
		})
	}
}

func TestHandshakeRejectsInvalidDefinitionWithoutDialing(t *testing.T) {
	v := newTestValidator(t)
	// Unroutable URL: if the schema check did not short-circuit, this would
	// block on a dial.
	conn := domain.MCPConnector{Name: "", Transport: "http", URL: "https://10.255.255.1/"}
	if err := v.Handshake(t.Context(), conn); !errors.Is(err, domain.ErrConnectorInvalid) {
		t.Fatalf("err = %v, want ErrConnectorInvalid", err)
	}
}
