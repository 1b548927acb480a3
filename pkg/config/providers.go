package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ProviderConfig describes one OAuth-style login provider.
type ProviderConfig struct {
	Provider        string `yaml:"provider" json:"provider"`
	Module          string `yaml:"module" json:"module"`
	ClientID        string `yaml:"clientID" json:"clientID"`
	ClientSecret    string `yaml:"clientSecret" json:"clientSecret"`
	AuthPath        string `yaml:"authPath" json:"authPath"`
	CallbackURL     string `yaml:"callbackURL" json:"callbackURL"`
	AuthURL         string `yaml:"authURL" json:"authURL"`
	TokenURL        string `yaml:"tokenURL" json:"tokenURL"`
	SuccessRedirect string `yaml:"successRedirect" json:"successRedirect"`
	FailureRedirect string `yaml:"failureRedirect" json:"failureRedirect"`
	DisplayName     string `yaml:"display" json:"display"`
	Scope           string `yaml:"scope" json:"scope"`
	FailureFlash    bool   `yaml:"failureFlash" json:"failureFlash"`
}

// ProviderMap holds login providers keyed by name, preserving declaration
// order. Auth routes are registered in this order, so it must survive both
// JSON (COMPOSER_PROVIDERS) and YAML decoding.
type ProviderMap struct {
	keys  []string
	byKey map[string]ProviderConfig
}

// Decode implements envconfig.Decoder so COMPOSER_PROVIDERS can be
// processed by envconfig directly. Malformed JSON fails the load; there is
// no fallback to the local strategy.
func (m *ProviderMap) Decode(value string) error {
	if err := m.UnmarshalJSON([]byte(value)); err != nil {
		return fmt.Errorf("invalid provider JSON: %w", err)
	}
	return nil
}

// UnmarshalJSON decodes a JSON object, recording keys in document order.
func (m *ProviderMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	m.keys = nil
	m.byKey = make(map[string]ProviderConfig)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)

		var cfg ProviderConfig
		if err := dec.Decode(&cfg); err != nil {
			return err
		}
		m.Set(key, cfg)
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// UnmarshalYAML decodes a YAML mapping, recording keys in document order.
func (m *ProviderMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("providers must be a mapping")
	}

	m.keys = nil
	m.byKey = make(map[string]ProviderConfig)

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value

		var cfg ProviderConfig
		if err := node.Content[i+1].Decode(&cfg); err != nil {
			return err
		}
		m.Set(key, cfg)
	}
	return nil
}

// Set adds or replaces a provider, keeping first-declaration order.
func (m *ProviderMap) Set(key string, cfg ProviderConfig) {
	if m.byKey == nil {
		m.byKey = make(map[string]ProviderConfig)
	}
	if _, exists := m.byKey[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.byKey[key] = cfg
}

// Get returns the provider declared under key.
func (m *ProviderMap) Get(key string) (ProviderConfig, bool) {
	cfg, ok := m.byKey[key]
	return cfg, ok
}

// Keys returns the provider keys in declaration order.
func (m *ProviderMap) Keys() []string {
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Len returns the number of declared providers.
func (m *ProviderMap) Len() int { return len(m.keys) }
