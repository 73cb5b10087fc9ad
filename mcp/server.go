// Package mcp provides the MCP (Model Context Protocol) server for reachgraph.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"

	"github.com/Benny93/reachgraph/internal/config"
	"github.com/Benny93/reachgraph/internal/index"
	"github.com/Benny93/reachgraph/internal/query"
)

// Version is reported to clients during initialization.
var Version = "0.1.0"

const (
	toolSearch = "reachgraph_search"
	toolRoots  = "reachgraph_roots"

	resourceOverview = "reachgraph://overview"
	resourceConfig   = "reachgraph://config"
)

// Server represents the MCP server.
type Server struct {
	source Source
	cfg    *config.Config
	engine *query.Engine
	logger *slog.Logger
	server *mcp.Server
}

// Source is the indexed snapshot the server searches.
type Source interface {
	index.Source
	IndexedAt() time.Time
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

type searchArgs struct {
	Root          string `json:"root"`
	Diagram       string `json:"diagram,omitempty"`
	ForwardDepth  *int   `json:"forward_depth,omitempty"`
	BackwardDepth *int   `json:"backward_depth,omitempty"`
	EdgeMode      string `json:"edge_mode,omitempty"`
	Format        string `json:"format,omitempty"`
}

type rootsArgs struct {
	Query string `json:"query"`
}

// NewServer creates a new MCP server searching src with cfg as the base
// configuration. A nil cfg uses the call preset.
func NewServer(src Source, cfg *config.Config, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = config.DefaultCall()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		source: src,
		cfg:    cfg,
		engine: query.NewEngine(src, logger),
		logger: logger,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "reachgraph",
		Version: Version,
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name: toolSearch,
			Description: "Find the call and type chains reachable from a root class or method. " +
				"Returns one chain per line of edges.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"root":           {Type: "string", Description: "Root as Type, path.Type, Type.Method or Type.Method(sig)"},
					"diagram":        {Type: "string", Description: "Preset: call, structure or flow", Enum: []any{"call", "structure", "flow"}},
					"forward_depth":  {Type: "integer", Description: "Forward search depth"},
					"backward_depth": {Type: "integer", Description: "Backward search depth"},
					"edge_mode":      {Type: "string", Description: "TypesOnly, MethodsOnly, TypesAndMethods or MethodsAndDirectTypeUsage"},
					"format":         {Type: "string", Description: "text or json", Enum: []any{"text", "json"}},
				},
				Required: []string{"root"},
			},
		},
		{
			Name:        toolRoots,
			Description: "List the classes and methods a query resolves to, for use as a search root.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Type or Type.Method query"},
				},
				Required: []string{"query"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         resourceOverview,
			Name:        "Index Overview",
			Description: "Module, snapshot time and class counts of the index",
			MimeType:    "text/plain",
		},
		{
			URI:         resourceConfig,
			Name:        "Search Configuration",
			Description: "The base configuration searches start from, as YAML",
			MimeType:    "application/yaml",
		},
	}
}

// CallTool executes a tool with the given JSON arguments.
func (s *Server) CallTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch name {
	case toolSearch:
		var a searchArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		return s.handleSearch(ctx, a)
	case toolRoots:
		var a rootsArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		return s.handleRoots(ctx, a)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case resourceOverview:
		return s.overview(ctx)
	case resourceConfig:
		data, err := yaml.Marshal(s.cfg)
		if err != nil {
			return "", fmt.Errorf("encoding config: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves line-delimited JSON-RPC over stdin and stdout.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return errors.New("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Debug("skipping malformed request", "error", err)
			continue
		}
		// Notifications carry no id and get no response.
		if _, ok := req["id"]; !ok {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

// ServeSDK serves the protocol through the go-sdk server on transport.
func (s *Server) ServeSDK(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// SDK returns the underlying go-sdk server.
func (s *Server) SDK() *mcp.Server {
	return s.server
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "ping":
		return result(id, map[string]any{})
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return result(id, map[string]any{
		"protocolVersion": "2024-11-05",
		"serverInfo": map[string]any{
			"name":    "reachgraph",
			"version": Version,
		},
		"capabilities": map[string]any{
			"tools":     map[string]any{"listChanged": false},
			"resources": map[string]any{"listChanged": false},
		},
	})
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": tool.InputSchema,
		}
	}
	return result(id, map[string]any{"tools": toolList})
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, err := json.Marshal(params["arguments"])
	if err != nil {
		return errorResponse(id, -32602, "Invalid arguments")
	}
	if string(args) == "null" {
		args = nil
	}

	text, err := s.CallTool(ctx, name, args)
	if err != nil {
		return result(id, map[string]any{
			"content": []map[string]any{{"type": "text", "text": err.Error()}},
			"isError": true,
		})
	}
	return result(id, map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	})
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}
	return result(id, map[string]any{"resources": resourceList})
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)
	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32002, err.Error())
	}

	return result(id, map[string]any{
		"contents": []map[string]any{
			{"uri": uri, "mimeType": s.mimeType(uri), "text": content},
		},
	})
}

func (s *Server) mimeType(uri string) string {
	for _, r := range s.ListResources() {
		if r.URI == uri {
			return r.MimeType
		}
	}
	return "text/plain"
}

// Tool Handlers

func (s *Server) searchConfig(a searchArgs) (*config.Config, error) {
	return s.cfg.Apply(config.Overrides{
		Diagram:       a.Diagram,
		ForwardDepth:  a.ForwardDepth,
		BackwardDepth: a.BackwardDepth,
		EdgeMode:      a.EdgeMode,
	})
}

func (s *Server) handleSearch(ctx context.Context, a searchArgs) (string, error) {
	if strings.TrimSpace(a.Root) == "" {
		return "", errors.New("root is required")
	}
	cfg, err := s.searchConfig(a)
	if err != nil {
		return "", err
	}

	res, err := s.engine.Search(ctx, cfg, a.Root)
	if err != nil {
		return "", err
	}
	report := query.NewReport(res)

	switch a.Format {
	case "", "text":
		return report.Text() + "\nNext: Use `reachgraph_search` on a chain member to follow it further.", nil
	case "json":
		data, err := json.Marshal(report)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown format %q", a.Format)
	}
}

func (s *Server) handleRoots(ctx context.Context, a rootsArgs) (string, error) {
	if strings.TrimSpace(a.Query) == "" {
		return "No query provided", nil
	}
	nodes, err := s.engine.Roots(ctx, s.cfg, a.Query)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return fmt.Sprintf("No classes or methods match '%s'.", a.Query), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d roots for '%s':\n\n", len(nodes), a.Query)
	for i, n := range nodes {
		v := query.NewNodeView(n)
		fmt.Fprintf(&sb, "%d. **%s** (%s)\n", i+1, v.Name, v.Kind)
		fmt.Fprintf(&sb, "   ID: %s\n", v.ID)
		if v.File != "" {
			fmt.Fprintf(&sb, "   File: %s\n", v.File)
		}
	}
	sb.WriteString("\nNext: Use `reachgraph_search` with one of these as root.")
	return sb.String(), nil
}

// Resource Handlers

func (s *Server) overview(ctx context.Context) (string, error) {
	project, err := s.source.List(ctx, index.ScopeProject)
	if err != nil {
		return "", err
	}
	all, err := s.source.List(ctx, index.ScopeAll)
	if err != nil {
		return "", err
	}
	methods := 0
	for _, h := range project {
		info, err := s.source.Lookup(ctx, h.Ref())
		if err != nil {
			return "", err
		}
		if info != nil {
			methods += len(info.Methods)
		}
	}

	var sb strings.Builder
	sb.WriteString("reachgraph index overview\n\n")
	fmt.Fprintf(&sb, "Module: %s\n", s.source.Name())
	fmt.Fprintf(&sb, "Indexed at: %s\n", s.source.IndexedAt().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Project classes: %d\n", len(project))
	fmt.Fprintf(&sb, "Dependency classes: %d\n", len(all)-len(project))
	fmt.Fprintf(&sb, "Project methods: %d\n", methods)
	fmt.Fprintf(&sb, "Default diagram: %s\n", s.cfg.Diagram)
	return sb.String(), nil
}

// Helper functions

func result(id any, body map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  body,
	}
}

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}

// registerTools registers the tools with the go-sdk server.
func (s *Server) registerTools() {
	for _, tool := range s.ListTools() {
		name := tool.Name
		s.server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			text, err := s.CallTool(ctx, name, req.Params.Arguments)
			if err != nil {
				return textResult(err.Error(), true), nil
			}
			return textResult(text, false), nil
		})
	}
}

// registerResources registers the resources with the go-sdk server.
func (s *Server) registerResources() {
	for _, res := range s.ListResources() {
		s.server.AddResource(&mcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, req.Params.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: res.URI, MIMEType: res.MimeType, Text: text}},
			}, nil
		})
	}
}
