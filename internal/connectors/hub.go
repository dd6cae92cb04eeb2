package connectors

import (
	"context"

	"github.com/daybookhq/daybook/internal/logging"
	"github.com/daybookhq/daybook/internal/normalize"
)

// Hub routes fetches between the backend fetch API and local stdio
// connector proxies. Tools with a proxy are served locally; everything
// else goes to the backend in one call.
type Hub struct {
	backend *Fetcher
	proxies map[string]*Proxy
}

// NewHub wraps the backend fetcher with zero or more local proxies.
func NewHub(backend *Fetcher, proxies []*Proxy) *Hub {
	byTool := make(map[string]*Proxy, len(proxies))
	for _, p := range proxies {
		byTool[p.Tool()] = p
	}
	return &Hub{backend: backend, proxies: byTool}
}

// FetchActivities fetches every requested tool and merges the results.
// A failed proxy contributes a nil payload, same as a failed backend
// tool; the fetch as a whole fails only when the backend call does.
func (h *Hub) FetchActivities(ctx context.Context, tools []string, dateRange DateRange) (*FetchResult, error) {
	var remote []string
	var local []string
	for _, tool := range tools {
		if _, ok := h.proxies[tool]; ok {
			local = append(local, tool)
		} else {
			remote = append(remote, tool)
		}
	}

	merged := &FetchResult{RawData: normalize.RawData{}}
	if len(remote) > 0 {
		result, err := h.backend.FetchActivities(ctx, remote, dateRange)
		if err != nil {
			return nil, err
		}
		merged.Sources = append(merged.Sources, result.Sources...)
		for tool, payload := range result.RawData {
			merged.RawData[tool] = payload
		}
	}

	for _, tool := range local {
		payload, err := h.proxies[tool].FetchActivities(dateRange)
		if err != nil {
			logging.Warn("proxy", "%s fetch failed: %v", tool, err)
			merged.RawData[tool] = nil
			continue
		}
		merged.RawData[tool] = payload
		merged.Sources = append(merged.Sources, tool)
	}
	return merged, nil
}

// Close stops every proxy process.
func (h *Hub) Close() {
	for _, p := range h.proxies {
		p.Close()
	}
}
