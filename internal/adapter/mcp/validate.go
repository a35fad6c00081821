// Package mcp validates MCP connector definitions: structurally against a
// JSON Schema, and optionally live via an initialize handshake with the
// connector endpoint.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kaptinlin/jsonschema"
	"github.com/mark3labs/mcp-go/client"
	mcpproto "github.com/mark3labs/mcp-go/mcp"

	"agentdesk/internal/domain"
)

// connectorSchema constrains what the backend will accept for a connector.
const connectorSchema = `{
	"type": "object",
	"required": ["name", "transport", "url"],
	"properties": {
		"name": {"type": "string", "minLength": 1, "maxLength": 128},
		"transport": {"type": "string", "enum": ["sse", "http"]},
		"url": {"type": "string", "pattern": "^https?://"},
		"headers": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		},
		"enabled": {"type": "boolean"}
	},
	"additionalProperties": true
}`

// Validator checks connector definitions.
type Validator struct {
	schema *jsonschema.Schema
	logger *slog.Logger
}

// NewValidator compiles the connector schema once.
func NewValidator(logger *slog.Logger) (*Validator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := jsonschema.NewCompiler().Compile([]byte(connectorSchema))
	if err != nil {
		return nil, domain.WrapOp("mcp.NewValidator", err)
	}
	return &Validator{schema: schema, logger: logger}, nil
}

// Check validates the connector definition against the schema. Returns
// ErrConnectorInvalid with the first violation as detail.
func (v *Validator) Check(conn domain.MCPConnector) error {
	raw, err := json.Marshal(conn)
	if err != nil {
		return domain.WrapOp("mcp.Check", err)
	}
	var instance map[string]any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return domain.WrapOp("mcp.Check", err)
	}

	result := v.schema.Validate(instance)
	if !result.IsValid() {
		return domain.NewDomainError("mcp.Check", domain.ErrConnectorInvalid, fmt.Sprintf("%s", result.Error()))
	}
	return nil
}

// Handshake performs a live initialize round trip against the connector
// endpoint. A connector that fails the schema check is rejected without any
// network activity.
func (v *Validator) Handshake(ctx context.Context, conn domain.MCPConnector) error {
	if err := v.Check(conn); err != nil {
		return err
	}

	var (
		c   *client.Client
		err error
	)
	switch conn.Transport {
	case "sse":
		c, err = client.NewSSEMCPClient(conn.URL)
	default:
		c, err = client.NewStreamableHttpClient(conn.URL)
	}
	if err != nil {
		return domain.WrapOp("mcp.Handshake", err)
	}
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		return domain.NewDomainError("mcp.Handshake", domain.ErrConnectorInvalid, err.Error())
	}

	req := mcpproto.InitializeRequest{}
	req.Params.ProtocolVersion = mcpproto.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcpproto.Implementation{
		Name:    "agentdesk",
		Version: "0.1.0",
	}
	res, err := c.Initialize(ctx, req)
	if err != nil {
		return domain.NewDomainError("mcp.Handshake", domain.ErrConnectorInvalid, err.Error())
	}

	v.logger.Info("mcp handshake succeeded",
		"connector", conn.Name,
		"server", res.ServerInfo.Name,
		"version", res.ServerInfo.Version)
	return nil
}
