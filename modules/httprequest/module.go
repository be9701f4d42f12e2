// Package httprequest provides the "core/http_request" node: performs one
// HTTP request and returns its status code and body.
package httprequest

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vk/burstflow/internal/pluginlog"
	"github.com/vk/burstflow/internal/registry"
)

type Module struct{}

func (m *Module) PluginID() string { return "core/http_request" }

var client = &http.Client{Timeout: 30 * time.Second}

func (m *Module) Register(reg *registry.PluginRegistrar) {
	reg.RegisterNode(registry.NodeSpec{
		Type:        "http_request",
		Label:       "HTTP Request",
		Category:    "network",
		Description: "Performs an HTTP request and returns its status and body.",
		PortsIn: []registry.PortSpec{
			{Name: "url", Type: "STRING", Required: true},
			{Name: "method", Type: "STRING", HasDefault: true, Default: "GET"},
		},
		PortsOut: []registry.PortSpec{
			{Name: "status_code", Type: "NUMBER"},
			{Name: "body", Type: "STRING"},
		},
	}, onRunHTTPRequest)
}

// onRunHTTPRequest takes no context: a registered node's run function is a
// plain positional-argument mapping over ports_in (see wrapRunFunc), with no
// slot for one. The request instead runs with the client's fixed timeout.
func onRunHTTPRequest(url string, method string) (float64, string, error) {
	pluginlog.Info(fmt.Sprintf("making %s request to %s", method, url))

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return 0, "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	pluginlog.Info(fmt.Sprintf("received response: %s", resp.Status))

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}

	return float64(resp.StatusCode), string(bodyBytes), nil
}
