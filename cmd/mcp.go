package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/reachgraph/mcp"
)

// MCPCmd starts the MCP server.
type MCPCmd struct {
	SDK bool `help:"Serve through the MCP SDK transport instead of the line-delimited JSON-RPC loop"`
}

// Run executes the mcp command.
func (c *MCPCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()

	src, cfg, err := g.loadSource(ctx)
	if err != nil {
		return err
	}
	server := mcp.NewServer(src, cfg, g.Logger)

	// stdout carries JSON-RPC only
	if c.SDK {
		return server.ServeSDK(ctx, &sdkmcp.StdioTransport{})
	}
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// SetupCmd configures MCP for various AI clients.
type SetupCmd struct {
	Qwen     bool   `help:"Configure for Qwen CLI"`
	Claude   bool   `help:"Configure for Claude Code"`
	Cursor   bool   `help:"Configure for Cursor"`
	Local    bool   `help:"Create project-local configuration"`
	Global   bool   `help:"Create global configuration"`
	Format   string `help:"Output format (json|text)" enum:"json,text" default:"json"`
	FilePath string `help:"Custom directory for the local configuration"`
}

// Run executes the setup command.
func (c *SetupCmd) Run(g *Globals) error {
	if c.Format != "json" && c.Format != "text" {
		return fmt.Errorf("invalid format: %s (must be json or text)", c.Format)
	}

	if !c.Qwen && !c.Claude && !c.Cursor {
		return c.outputDefaultConfig(g)
	}

	// Local is the default target
	if !c.Local && !c.Global {
		c.Local = true
	}

	repoPath, err := g.repoPath("")
	if err != nil {
		return err
	}
	for _, client := range c.clients() {
		if err := c.setup(g, repoPath, client); err != nil {
			return err
		}
	}
	return nil
}

func (c *SetupCmd) clients() []string {
	var clients []string
	if c.Qwen {
		clients = append(clients, "qwen")
	}
	if c.Claude {
		clients = append(clients, "claude")
	}
	if c.Cursor {
		clients = append(clients, "cursor")
	}
	return clients
}

func (c *SetupCmd) outputDefaultConfig(g *Globals) error {
	content, err := renderConfig(generateMCPConfig(), c.Format)
	if err != nil {
		return err
	}
	if c.Format == "text" {
		fmt.Fprintln(g.Out, "# Add this to your MCP client configuration:")
		fmt.Fprintln(g.Out)
	}
	_, err = g.Out.Write(content)
	return err
}

func (c *SetupCmd) setup(g *Globals, repoPath, client string) error {
	config := generateMCPConfig()
	name := clientName(client)

	if c.Global {
		globalPath := getGlobalConfigPath(client)
		if err := writeConfig(globalPath, config, c.Format); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(g.Out, "✓ Created global %s MCP config at %s\n", name, globalPath)
	}

	if c.Local {
		localPath := getLocalConfigPath(repoPath, client)
		if c.FilePath != "" {
			localPath = filepath.Join(c.FilePath, "mcp.json")
		}
		if err := writeConfig(localPath, config, c.Format); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(g.Out, "✓ Created local %s MCP config at %s\n", name, localPath)
	}
	return nil
}

func generateMCPConfig() map[string]any {
	return map[string]any{
		"mcpServers": map[string]any{
			"reachgraph": map[string]any{
				"command": "reachgraph",
				"args":    []string{"mcp"},
			},
		},
	}
}

// Path helpers

func getLocalConfigPath(basePath, client string) string {
	return filepath.Join(basePath, getClientConfigDir(client), "mcp.json")
}

func getGlobalConfigPath(client string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
	}
	return filepath.Join(homeDir, getClientConfigDir(client), "global", "mcp.json")
}

func getClientConfigDir(client string) string {
	switch client {
	case "claude":
		return ".claude"
	case "cursor":
		return ".cursor"
	default:
		return ".qwen"
	}
}

func clientName(client string) string {
	switch client {
	case "claude":
		return "Claude"
	case "cursor":
		return "Cursor"
	default:
		return "Qwen"
	}
}

// Config writers

func renderConfig(config map[string]any, format string) ([]byte, error) {
	if format == "json" {
		content, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling JSON: %w", err)
		}
		return append(content, '\n'), nil
	}

	keys := make([]string, 0, len(config))
	for key := range config {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		value, err := json.Marshal(config[key])
		if err != nil {
			return nil, fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(&sb, "%s: %s\n", key, value)
	}
	return []byte(sb.String()), nil
}

func writeConfig(configPath string, config map[string]any, format string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	content, err := renderConfig(config, format)
	if err != nil {
		return err
	}
	if format == "text" {
		content = append([]byte("# MCP configuration for reachgraph\n# Generated by reachgraph setup\n\n"), content...)
	}

	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
