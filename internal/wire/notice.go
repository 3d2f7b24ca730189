// Package wire builds the JSON payloads exchanged with the collection
// endpoint. It is a pure data-mapping layer: the pipeline hands it plain
// values and receives marshalled bytes.
package wire

import (
	"encoding/json"
	"fmt"
)

// Notifier identifies the reporting client in every payload.
type Notifier struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

// Frame is one backtrace entry in an error payload.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// Error describes a single captured error within a notice payload.
type Error struct {
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Backtrace []Frame `json:"backtrace"`
}

// Notice is the top-level notice payload.
type Notice struct {
	Notifier    Notifier          `json:"notifier"`
	Errors      []Error           `json:"errors"`
	Context     map[string]string `json:"context,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Params      map[string]any    `json:"params,omitempty"`
}

// Marshal serializes the notice payload.
func (n *Notice) Marshal() ([]byte, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal notice: %w", err)
	}
	return payload, nil
}

// Deploy is the deploy-tracking payload.
type Deploy struct {
	Environment string `json:"environment"`
	Repository  string `json:"repository,omitempty"`
	Revision    string `json:"revision,omitempty"`
	Version     string `json:"version,omitempty"`
	Username    string `json:"username,omitempty"`
}

// Marshal serializes the deploy payload.
func (d *Deploy) Marshal() ([]byte, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal deploy: %w", err)
	}
	return payload, nil
}
