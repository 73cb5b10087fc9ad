package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/reachgraph/internal/config"
	"github.com/Benny93/reachgraph/internal/index"
	"github.com/Benny93/reachgraph/internal/storage"
)

const shop = "example.com/shop"

var indexedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestSource stores a small shop module and loads it back:
// OrderHandler -> OrderService -> {OrderRepository, PaymentClient}, plus
// one dependency class.
func newTestSource(t *testing.T) *storage.SnapshotSource {
	t.Helper()

	ref := func(name string) index.ClassRef { return index.ClassRef{Path: shop, Name: name, Kind: index.KindClass} }
	run := func(name string) index.MethodRef { return index.MethodRef{Class: ref(name), Signature: "Run()"} }
	class := func(name string, calls ...index.MethodRef) index.ClassInfo {
		info := index.ClassInfo{ClassHeader: index.ClassHeader{Path: shop, Name: name, Kind: index.KindClass, FilePath: name + ".go"}}
		mi := index.MethodInfo{Name: "Run", Signature: "Run()", Exported: true}
		for i, c := range calls {
			mi.Calls = append(mi.Calls, index.CallInfo{Target: c, Sequence: i})
		}
		info.Methods = []index.MethodInfo{mi}
		return info
	}
	stringer := index.ClassInfo{ClassHeader: index.ClassHeader{Path: "fmt", Name: "Stringer", Kind: index.KindInterface, External: true}}

	store := storage.NewMemoryBackend()
	require.NoError(t, store.SaveSnapshot(context.Background(), &storage.Snapshot{
		Module:    shop,
		IndexedAt: indexedAt,
		Classes: []index.ClassInfo{
			class("OrderHandler", run("OrderService")),
			class("OrderService", run("OrderRepository"), run("PaymentClient")),
			class("OrderRepository"),
			class("PaymentClient"),
			stringer,
		},
	}))

	src, err := storage.LoadSource(context.Background(), store)
	require.NoError(t, err)
	return src
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	t.Run("CreatesServer", func(t *testing.T) {
		t.Parallel()
		server := NewServer(newTestSource(t), nil, nil)

		assert.NotNil(t, server)
		assert.NotNil(t, server.SDK())
		assert.Equal(t, config.DiagramCall, server.cfg.Diagram, "nil config uses the call preset")
	})
}

func TestServer_Tools(t *testing.T) {
	t.Parallel()

	server := NewServer(newTestSource(t), nil, nil)

	t.Run("ListTools", func(t *testing.T) {
		t.Parallel()
		var names []string
		for _, tool := range server.ListTools() {
			names = append(names, tool.Name)
			assert.NotEmpty(t, tool.Description)
			require.NotNil(t, tool.InputSchema)
			assert.Equal(t, "object", tool.InputSchema.Type)
		}
		assert.Equal(t, []string{"reachgraph_search", "reachgraph_roots"}, names)
	})
}

func TestServer_HandleToolCalls(t *testing.T) {
	t.Parallel()

	server := NewServer(newTestSource(t), config.DefaultCall(), nil)
	ctx := context.Background()

	t.Run("SearchText", func(t *testing.T) {
		t.Parallel()
		result, err := server.CallTool(ctx, "reachgraph_search", json.RawMessage(`{"root":"OrderService.Run"}`))
		require.NoError(t, err)
		assert.Contains(t, result, "Root: OrderService.Run")
		assert.Contains(t, result, "OrderHandler.Run -> OrderService.Run [call 0]")
		assert.NotContains(t, result, "OrderRepository", "the call preset cuts data access")
	})

	t.Run("SearchOverrides", func(t *testing.T) {
		t.Parallel()
		result, err := server.CallTool(ctx, "reachgraph_search", json.RawMessage(
			`{"root":"OrderHandler.Run","diagram":"flow","forward_depth":1,"format":"json"}`))
		require.NoError(t, err)

		var report struct {
			Forward int `json:"forward_depth"`
			Chains  [][]struct {
				From string `json:"from"`
				To   string `json:"to"`
			} `json:"chains"`
		}
		require.NoError(t, json.Unmarshal([]byte(result), &report))
		assert.Equal(t, 1, report.Forward)
		require.Len(t, report.Chains, 1)
		require.Len(t, report.Chains[0], 1)
		assert.Equal(t, "OrderService.Run", report.Chains[0][0].To)
	})

	t.Run("SearchEdgeMode", func(t *testing.T) {
		t.Parallel()
		result, err := server.CallTool(ctx, "reachgraph_search", json.RawMessage(`{"root":"OrderService","edge_mode":"typesonly"}`))
		require.NoError(t, err)
		assert.Contains(t, result, "Mode: TypesOnly")
	})

	t.Run("SearchErrors", func(t *testing.T) {
		t.Parallel()
		for name, args := range map[string]string{
			"MissingRoot":   `{}`,
			"UnknownRoot":   `{"root":"Nope"}`,
			"BadDiagram":    `{"root":"OrderService","diagram":"sequence"}`,
			"BadEdgeMode":   `{"root":"OrderService","edge_mode":"everything"}`,
			"NegativeDepth": `{"root":"OrderService","forward_depth":-1}`,
			"BadFormat":     `{"root":"OrderService","format":"xml"}`,
			"NotJSON":       `{"root":`,
		} {
			_, err := server.CallTool(ctx, "reachgraph_search", json.RawMessage(args))
			assert.Error(t, err, name)
		}
	})

	t.Run("Roots", func(t *testing.T) {
		t.Parallel()
		result, err := server.CallTool(ctx, "reachgraph_roots", json.RawMessage(`{"query":"OrderRepository"}`))
		require.NoError(t, err)
		assert.Contains(t, result, "Found 1 roots for 'OrderRepository'")
		assert.Contains(t, result, "ID: "+shop+".OrderRepository")
		assert.Contains(t, result, "File: OrderRepository.go")
	})

	t.Run("RootsMissingQuery", func(t *testing.T) {
		t.Parallel()
		result, err := server.CallTool(ctx, "reachgraph_roots", nil)
		require.NoError(t, err)
		assert.Contains(t, result, "No query provided")
	})

	t.Run("RootsNoMatch", func(t *testing.T) {
		t.Parallel()
		result, err := server.CallTool(ctx, "reachgraph_roots", json.RawMessage(`{"query":"Nothing"}`))
		require.NoError(t, err)
		assert.Contains(t, result, "No classes or methods match")
	})

	t.Run("UnknownTool", func(t *testing.T) {
		t.Parallel()
		result, err := server.CallTool(ctx, "unknown_tool", nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown tool")
		assert.Empty(t, result)
	})
}

func TestServer_Resources(t *testing.T) {
	t.Parallel()

	server := NewServer(newTestSource(t), nil, nil)
	ctx := context.Background()

	t.Run("ListResources", func(t *testing.T) {
		t.Parallel()
		var uris []string
		for _, res := range server.ListResources() {
			uris = append(uris, res.URI)
			assert.NotEmpty(t, res.Name)
			assert.NotEmpty(t, res.Description)
			assert.NotEmpty(t, res.MimeType)
		}
		assert.Equal(t, []string{"reachgraph://overview", "reachgraph://config"}, uris)
	})

	t.Run("ReadOverview", func(t *testing.T) {
		t.Parallel()
		content, err := server.ReadResource(ctx, "reachgraph://overview")
		require.NoError(t, err)
		assert.Contains(t, content, "Module: "+shop)
		assert.Contains(t, content, "Indexed at: 2026-03-01T12:00:00Z")
		assert.Contains(t, content, "Project classes: 4")
		assert.Contains(t, content, "Dependency classes: 1")
		assert.Contains(t, content, "Project methods: 4")
	})

	t.Run("ReadConfig", func(t *testing.T) {
		t.Parallel()
		content, err := server.ReadResource(ctx, "reachgraph://config")
		require.NoError(t, err)
		cfg, err := config.Parse([]byte(content))
		require.NoError(t, err)
		assert.Equal(t, config.DefaultCall(), cfg)
	})

	t.Run("ReadUnknownResource", func(t *testing.T) {
		t.Parallel()
		content, err := server.ReadResource(ctx, "reachgraph://unknown")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown resource")
		assert.Empty(t, content)
	})
}

// exchange feeds line-delimited requests to Run and decodes the responses.
func exchange(t *testing.T, server *Server, requests ...string) []map[string]any {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(requests, "\n") + "\n")
	require.NoError(t, server.Run(context.Background(), in, &out))

	var responses []map[string]any
	dec := json.NewDecoder(&out)
	for dec.More() {
		var resp map[string]any
		require.NoError(t, dec.Decode(&resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestServer_Run(t *testing.T) {
	t.Parallel()

	server := NewServer(newTestSource(t), nil, nil)

	t.Run("RunWithNilStreams", func(t *testing.T) {
		t.Parallel()
		err := server.Run(context.Background(), nil, nil)
		assert.Error(t, err)
	})

	t.Run("Initialize", func(t *testing.T) {
		t.Parallel()
		responses := exchange(t, server, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
		require.Len(t, responses, 1)
		result := responses[0]["result"].(map[string]any)
		info := result["serverInfo"].(map[string]any)
		assert.Equal(t, "reachgraph", info["name"])
	})

	t.Run("SkipsNotificationsAndMalformedLines", func(t *testing.T) {
		t.Parallel()
		responses := exchange(t, server,
			`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			`not json`,
			`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
		)
		require.Len(t, responses, 1)
		assert.Equal(t, float64(2), responses[0]["id"])
	})

	t.Run("ToolsAndResources", func(t *testing.T) {
		t.Parallel()
		responses := exchange(t, server,
			`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
			`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"reachgraph_roots","arguments":{"query":"OrderService"}}}`,
			`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"reachgraph_search","arguments":{}}}`,
			`{"jsonrpc":"2.0","id":4,"method":"resources/read","params":{"uri":"reachgraph://overview"}}`,
			`{"jsonrpc":"2.0","id":5,"method":"resources/read","params":{"uri":"reachgraph://nope"}}`,
			`{"jsonrpc":"2.0","id":6,"method":"bogus"}`,
		)
		require.Len(t, responses, 6)

		tools := responses[0]["result"].(map[string]any)["tools"].([]any)
		assert.Len(t, tools, 2)

		call := responses[1]["result"].(map[string]any)
		text := call["content"].([]any)[0].(map[string]any)["text"].(string)
		assert.Contains(t, text, "OrderService")
		assert.Nil(t, call["isError"])

		failed := responses[2]["result"].(map[string]any)
		assert.Equal(t, true, failed["isError"])

		contents := responses[3]["result"].(map[string]any)["contents"].([]any)
		assert.Contains(t, contents[0].(map[string]any)["text"], "Project classes: 4")

		assert.NotNil(t, responses[4]["error"])
		rpcErr := responses[5]["error"].(map[string]any)
		assert.Equal(t, float64(-32601), rpcErr["code"])
	})
}

func TestServer_SDK(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	server := NewServer(newTestSource(t), nil, nil)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.SDK().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	t.Run("ListTools", func(t *testing.T) {
		tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
		require.NoError(t, err)
		assert.Len(t, tools.Tools, 2)
	})

	t.Run("CallTool", func(t *testing.T) {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "reachgraph_search",
			Arguments: map[string]any{"root": "OrderService.Run"},
		})
		require.NoError(t, err)
		assert.False(t, res.IsError)
		require.NotEmpty(t, res.Content)
		text, ok := res.Content[0].(*mcp.TextContent)
		require.True(t, ok)
		assert.Contains(t, text.Text, "OrderHandler.Run -> OrderService.Run")
	})

	t.Run("CallToolError", func(t *testing.T) {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "reachgraph_search",
			Arguments: map[string]any{"root": "Nope"},
		})
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("ReadResource", func(t *testing.T) {
		res, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "reachgraph://overview"})
		require.NoError(t, err)
		require.Len(t, res.Contents, 1)
		assert.Contains(t, res.Contents[0].Text, "Module: "+shop)
	})
}
