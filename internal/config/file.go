package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"autopull/internal/mapping"
	"autopull/pkg/cmdutil"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration file layout.
//
//	mode: pull
//	namespace: autopull
//	port: 8011
//	secret: ...
//	pull_command: git pull --ff-only
//	pull_timeout: 2m
//	mappings:
//	  - site=/srv/www/site
//	  - key: site
//	    target: /srv/www/assets
type FileConfig struct {
	Mode           string          `yaml:"mode"`
	Namespace      string          `yaml:"namespace"`
	Host           string          `yaml:"host"`
	Port           int             `yaml:"port"`
	Secret         string          `yaml:"secret"`
	PullCommand    interface{}     `yaml:"pull_command"` // string or list
	Interpreter    interface{}     `yaml:"interpreter"`  // string or list
	PullTimeout    string          `yaml:"pull_timeout"`
	RateLimit      *int            `yaml:"rate_limit"`
	SerializePulls *bool           `yaml:"serialize_pulls"`
	Mappings       []MappingConfig `yaml:"mappings"`
}

// MappingConfig is one mapping in the file, written either as a
// "key=target" scalar or as a {key, target} mapping.
type MappingConfig mapping.Entry

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *MappingConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		entry, err := mapping.ParseEntry(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*m = MappingConfig(entry)
		return nil
	case yaml.MappingNode:
		var entry mapping.Entry
		if err := node.Decode(&entry); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		if entry.Key == "" || entry.Target == "" {
			return fmt.Errorf("line %d: mapping needs both key and target", node.Line)
		}
		*m = MappingConfig(entry)
		return nil
	default:
		return fmt.Errorf("line %d: mapping must be a string or an object", node.Line)
	}
}

// LoadFile reads and decodes a YAML config file. Unknown fields are errors.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML config %s: %w", path, err)
	}

	return &fc, nil
}

// ApplyFile overrides fields set in fc and appends its mappings.
func (c *Config) ApplyFile(fc *FileConfig) error {
	if fc.Mode != "" {
		mode, err := mapping.ParseMode(fc.Mode)
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		c.Mode = mode
	}
	if fc.Namespace != "" {
		c.Namespace = fc.Namespace
	}
	if fc.Host != "" {
		c.Host = fc.Host
	}
	if fc.Port != 0 {
		c.Port = fc.Port
	}
	if fc.Secret != "" {
		c.Secret = fc.Secret
	}
	if fc.PullCommand != nil {
		parts, err := cmdutil.ParseCommandList(fc.PullCommand)
		if err != nil {
			return fmt.Errorf("pull_command: %w", err)
		}
		c.PullCommand = parts
	}
	if fc.Interpreter != nil {
		parts, err := cmdutil.ParseCommandList(fc.Interpreter)
		if err != nil {
			return fmt.Errorf("interpreter: %w", err)
		}
		c.Interpreter = parts
	}
	if fc.PullTimeout != "" {
		d, err := ParseTimeout(fc.PullTimeout)
		if err != nil {
			return fmt.Errorf("pull_timeout: %w", err)
		}
		c.PullTimeout = d
	}
	if fc.RateLimit != nil {
		c.RateLimit = *fc.RateLimit
	}
	if fc.SerializePulls != nil {
		c.SerializePulls = *fc.SerializePulls
	}
	for _, m := range fc.Mappings {
		c.Mappings = append(c.Mappings, mapping.Entry(m))
	}

	return nil
}
