package connectors

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/daybookhq/daybook/internal/logging"
)

// ProxyConfig describes a local stdio connector process serving one tool.
type ProxyConfig struct {
	Tool    string            `json:"tool"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Proxy manages a stdio connector subprocess and fetches raw activity
// payloads from it over JSON-RPC tool calls. Used for tools served by a
// local connector instead of the backend fetch API.
type Proxy struct {
	tool   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex // serializes send/receive pairs
	nextID int64
}

// StartProxy launches the connector subprocess and runs the protocol
// handshake.
func StartProxy(cfg ProxyConfig) (*Proxy, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)

	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	// Connector logs go to our stderr
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}

	p := &Proxy{
		tool:   cfg.Tool,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}

	if err := p.initialize(); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, fmt.Errorf("initialize %s connector: %w", cfg.Tool, err)
	}

	logging.Info("proxy", "%s connector ready (pid=%d)", cfg.Tool, cmd.Process.Pid)
	return p, nil
}

// FetchActivities asks the connector for the tool's raw payload over the
// date range. The connector returns the payload as JSON text content.
func (p *Proxy) FetchActivities(dateRange DateRange) (any, error) {
	text, err := p.callTool("fetch_activities", map[string]any{
		"start": dateRange.Start,
		"end":   dateRange.End,
	})
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	var payload any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("parse %s connector payload: %w", p.tool, err)
	}
	return payload, nil
}

// Tool returns the tool type this proxy serves.
func (p *Proxy) Tool() string {
	return p.tool
}

// Close stops the connector process.
func (p *Proxy) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stdin.Close()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.cmd.Wait()
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (p *Proxy) newID() int64 {
	return atomic.AddInt64(&p.nextID, 1)
}

// sendRequest sends a JSON-RPC request and reads lines until the matching
// response arrives, skipping notifications and non-JSON startup noise.
func (p *Proxy) sendRequest(method string, params any) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      p.newID(),
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := fmt.Fprintf(p.stdin, "%s\n", data); err != nil {
		return nil, fmt.Errorf("write to %s connector: %w", p.tool, err)
	}

	for {
		line, err := p.stdout.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read from %s connector: %w", p.tool, err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var resp rpcResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			logging.Debug("proxy", "%s: skipping non-JSON line: %.80s", p.tool, line)
			continue
		}
		if resp.ID == nil {
			continue // notification
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	}
}

func (p *Proxy) sendNotification(method string, params any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	notif := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
	}
	if params != nil {
		notif["params"] = params
	}
	data, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = fmt.Fprintf(p.stdin, "%s\n", data)
	return err
}

func (p *Proxy) initialize() error {
	_, err := p.sendRequest("initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo": map[string]string{
			"name":    "daybook",
			"version": "0.1.0",
		},
		"capabilities": map[string]any{},
	})
	if err != nil {
		return fmt.Errorf("initialize handshake: %w", err)
	}
	return p.sendNotification("notifications/initialized", nil)
}

func (p *Proxy) callTool(name string, args map[string]any) (string, error) {
	result, err := p.sendRequest("tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", fmt.Errorf("tools/call %s: %w", name, err)
	}

	var callResult struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError,omitempty"`
	}
	if err := json.Unmarshal(result, &callResult); err != nil {
		return "", fmt.Errorf("parse call result: %w", err)
	}
	if callResult.IsError {
		if len(callResult.Content) > 0 {
			return "", fmt.Errorf("%s", callResult.Content[0].Text)
		}
		return "", fmt.Errorf("connector returned error")
	}
	if len(callResult.Content) == 0 {
		return "", nil
	}
	return callResult.Content[0].Text, nil
}

// LoadProxyConfigs reads a connectors.json file listing local stdio
// connectors, keyed by tool type.
func LoadProxyConfigs(path string) ([]ProxyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg struct {
		Connectors map[string]ProxyConfig `json:"connectors"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var out []ProxyConfig
	for tool, pc := range cfg.Connectors {
		if pc.Command == "" {
			continue
		}
		pc.Tool = tool
		out = append(out, pc)
	}
	return out, nil
}
