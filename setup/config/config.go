// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Package config defines the engine's configuration surface
// (spec.md §6 Configuration surface) and its defaulting/validation
// conventions, grounded on Dendrite's setup/config package style:
// a plain struct with yaml tags, a Defaults method, and a Verify method
// that appends to a shared error-accumulator rather than failing fast.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matrix-org/sync3-client/sync3"
)

// ConfigErrors accumulates validation problems so Verify can report every
// misconfiguration in one pass instead of stopping at the first.
type ConfigErrors []string

func (e *ConfigErrors) Add(msg string) {
	*e = append(*e, msg)
}

func (e ConfigErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	out := "config: invalid configuration:"
	for _, msg := range e {
		out += "\n  - " + msg
	}
	return out
}

// DefaultOpts mirrors the teacher's small options-struct-to-Defaults
// convention rather than a variadic functional-options API.
type DefaultOpts struct{}

// ExtensionConfig is the declarative shape of one built-in extension's
// initial settings, used to construct and register it at startup.
type ExtensionConfig struct {
	Enabled bool     `yaml:"enabled"`
	Lists   []string `yaml:"lists,omitempty"`
	Rooms   []string `yaml:"rooms,omitempty"`
	Limit   int      `yaml:"limit,omitempty"`
}

// Config is the engine's full configuration surface
// (spec.md §6 Configuration surface).
type Config struct {
	// ProxyBaseURL is the sliding-sync proxy/server base URL, e.g.
	// "https://syncv3.example.org".
	ProxyBaseURL string `yaml:"proxy_base_url"`

	// TimeoutSeconds bounds each individual request; defaults to 30.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// ConnID is optionally echoed on every request once set
	// (SPEC_FULL.md §6 supplemented feature).
	ConnID string `yaml:"conn_id,omitempty"`

	// Lists is the initial set of named lists to define at startup.
	Lists map[string]sync3.ListShape `yaml:"lists,omitempty"`

	// DefaultRoomSubscription is the initial default subscription shape
	// applied to rooms with no custom assignment.
	DefaultRoomSubscription sync3.RoomSubscription `yaml:"default_room_subscription"`

	// Extensions configures the built-in extensions by name
	// ("e2ee", "to_device", "account_data", "receipts", "typing").
	Extensions map[string]ExtensionConfig `yaml:"extensions,omitempty"`
}

// Load reads and parses a YAML configuration file, matching the
// teacher's setup/config.Load convention of reading the whole file into
// memory before unmarshalling rather than streaming it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &c, nil
}

// Defaults fills in zero-value fields with the engine's defaults.
func (c *Config) Defaults(opts DefaultOpts) {
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
	if c.Lists == nil {
		c.Lists = map[string]sync3.ListShape{}
	}
	if c.Extensions == nil {
		c.Extensions = map[string]ExtensionConfig{}
	}
}

// Timeout returns TimeoutSeconds as a time.Duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Verify checks the configuration is usable, appending any problems to
// configErrs rather than returning early, matching the teacher's
// accumulate-then-report convention.
func (c *Config) Verify(configErrs *ConfigErrors) {
	if c.ProxyBaseURL == "" {
		configErrs.Add("proxy_base_url is not set")
	}
	if c.TimeoutSeconds <= 0 {
		configErrs.Add(fmt.Sprintf("timeout_seconds must be positive, got %d", c.TimeoutSeconds))
	}
	for name, shape := range c.Lists {
		if !shape.Ranges.Valid() {
			configErrs.Add(fmt.Sprintf("lists.%s: ranges are invalid", name))
		}
	}
}
