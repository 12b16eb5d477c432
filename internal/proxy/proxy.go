// Package proxy mirrors a remote MCP server onto a local one and relays
// every call to it unchanged.
package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"expenses/internal/log"
)

const Version = "0.1.0"

// Remote is the part of an MCP client the proxy forwards to.
type Remote interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	ListResources(ctx context.Context, req mcp.ListResourcesRequest) (*mcp.ListResourcesResult, error)
	ListResourceTemplates(ctx context.Context, req mcp.ListResourceTemplatesRequest) (*mcp.ListResourceTemplatesResult, error)
	ReadResource(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error)
	ListPrompts(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error)
	GetPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error)
}

// Dial connects to a streamable HTTP MCP endpoint and completes the
// initialize handshake.
func Dial(ctx context.Context, url, clientName string) (*client.Client, *mcp.InitializeResult, error) {
	c, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, nil, fmt.Errorf("create client for %s: %w", url, err)
	}
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("start client: %w", err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: Version}
	res, err := c.Initialize(ctx, req)
	if err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("initialize %s: %w", url, err)
	}
	return c, res, nil
}

type forwarder struct {
	remote Remote
	logger *log.Logger
}

// New lists the remote's tools, resources, resource templates and prompts
// and registers each on a new local server named name. Failures to list
// anything but tools are logged and skipped, since a remote may offer
// tools only.
func New(ctx context.Context, name string, remote Remote, logger *log.Logger) (*server.MCPServer, error) {
	if logger == nil {
		logger = log.Discard()
	}
	f := &forwarder{remote: remote, logger: logger.WithComponent(log.ComponentProxy)}

	s := server.NewMCPServer(name, Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
	)

	tools, err := f.listTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote tools: %w", err)
	}
	for _, tool := range tools {
		s.AddTool(tool, f.callTool)
	}

	resources, err := f.listResources(ctx)
	if err != nil {
		f.logger.WarnContext(ctx, "Remote resources unavailable", log.FieldError, err)
	}
	for _, res := range resources {
		s.AddResource(res, f.readResource)
	}

	templates, err := f.listTemplates(ctx)
	if err != nil {
		f.logger.WarnContext(ctx, "Remote resource templates unavailable", log.FieldError, err)
	}
	for _, tmpl := range templates {
		s.AddResourceTemplate(tmpl, f.readResource)
	}

	prompts, err := f.listPrompts(ctx)
	if err != nil {
		f.logger.WarnContext(ctx, "Remote prompts unavailable", log.FieldError, err)
	}
	for _, prompt := range prompts {
		s.AddPrompt(prompt, f.getPrompt)
	}

	f.logger.InfoContext(ctx, "Mirrored remote server",
		"tools", len(tools),
		"resources", len(resources),
		"templates", len(templates),
		"prompts", len(prompts))
	return s, nil
}

func (f *forwarder) callTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	res, err := f.remote.CallTool(ctx, req)
	if err != nil {
		f.logger.ErrorContext(ctx, "Forwarded tool call failed",
			log.FieldOperation, log.OpForward,
			log.FieldTool, req.Params.Name,
			log.FieldError, err)
		return nil, err
	}
	f.logger.DebugContext(ctx, "Forwarded tool call",
		log.FieldOperation, log.OpForward,
		log.FieldTool, req.Params.Name,
		log.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}

func (f *forwarder) readResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	res, err := f.remote.ReadResource(ctx, req)
	if err != nil {
		f.logger.ErrorContext(ctx, "Forwarded resource read failed",
			log.FieldOperation, log.OpForward,
			log.FieldResourceURI, req.Params.URI,
			log.FieldError, err)
		return nil, err
	}
	return res.Contents, nil
}

func (f *forwarder) getPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	res, err := f.remote.GetPrompt(ctx, req)
	if err != nil {
		f.logger.ErrorContext(ctx, "Forwarded prompt failed",
			log.FieldOperation, log.OpForward,
			"prompt", req.Params.Name,
			log.FieldError, err)
		return nil, err
	}
	return res, nil
}

func (f *forwarder) listTools(ctx context.Context) ([]mcp.Tool, error) {
	var (
		out    []mcp.Tool
		cursor mcp.Cursor
	)
	for {
		req := mcp.ListToolsRequest{}
		req.Params.Cursor = cursor
		res, err := f.remote.ListTools(ctx, req)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Tools...)
		if res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

func (f *forwarder) listResources(ctx context.Context) ([]mcp.Resource, error) {
	var (
		out    []mcp.Resource
		cursor mcp.Cursor
	)
	for {
		req := mcp.ListResourcesRequest{}
		req.Params.Cursor = cursor
		res, err := f.remote.ListResources(ctx, req)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Resources...)
		if res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

func (f *forwarder) listTemplates(ctx context.Context) ([]mcp.ResourceTemplate, error) {
	var (
		out    []mcp.ResourceTemplate
		cursor mcp.Cursor
	)
	for {
		req := mcp.ListResourceTemplatesRequest{}
		req.Params.Cursor = cursor
		res, err := f.remote.ListResourceTemplates(ctx, req)
		if err != nil {
			return nil, err
		}
		out = append(out, res.ResourceTemplates...)
		if res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

func (f *forwarder) listPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	var (
		out    []mcp.Prompt
		cursor mcp.Cursor
	)
	for {
		req := mcp.ListPromptsRequest{}
		req.Params.Cursor = cursor
		res, err := f.remote.ListPrompts(ctx, req)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Prompts...)
		if res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}
