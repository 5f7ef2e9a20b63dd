// config_loader.go: Multi-format document decoding shared by config and manifests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agilira/argus"
	"gopkg.in/yaml.v3"
)

// readDocument reads a file and detects its format from the extension.
func readDocument(path string) ([]byte, argus.ConfigFormat, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 -- caller supplied configuration path
	if err != nil {
		return nil, argus.DetectFormat(cleanPath), err
	}
	return data, argus.DetectFormat(cleanPath), nil
}

// parseDocumentMap parses a document into a generic map.
//
// Strategy:
//   - YAML: gopkg.in/yaml.v3 node tree; scalars keep their source text, so
//     "version: 1.10" stays "1.10" instead of becoming the float 1.1
//   - Others: argus (JSON, TOML, HCL, INI, Properties)
func parseDocumentMap(data []byte, format argus.ConfigFormat) (map[string]interface{}, error) {
	if format == argus.FormatYAML {
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML document: %w", err)
		}
		if len(doc.Content) == 0 {
			return make(map[string]interface{}), nil
		}
		out, ok := yamlNodeValue(doc.Content[0]).(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("YAML document must be a mapping")
		}
		return out, nil
	}
	return argus.ParseConfig(data, format)
}

// yamlNodeValue converts a YAML node into maps, slices and scalars. Booleans
// and nulls are typed; every other scalar is returned as its literal text.
func yamlNodeValue(node *yaml.Node) interface{} {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil
		}
		return yamlNodeValue(node.Content[0])
	case yaml.AliasNode:
		return yamlNodeValue(node.Alias)
	case yaml.MappingNode:
		out := make(map[string]interface{}, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			out[node.Content[i].Value] = yamlNodeValue(node.Content[i+1])
		}
		return out
	case yaml.SequenceNode:
		out := make([]interface{}, 0, len(node.Content))
		for _, item := range node.Content {
			out = append(out, yamlNodeValue(item))
		}
		return out
	default:
		switch node.ShortTag() {
		case "!!null":
			return nil
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err == nil {
				return b
			}
		}
		return node.Value
	}
}

// decodeDocument decodes a document into a typed struct. YAML goes straight
// through yaml.v3; other formats are parsed by argus and bound via JSON so the
// struct's json tags apply.
func decodeDocument(data []byte, format argus.ConfigFormat, out interface{}) error {
	if format == argus.FormatYAML {
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse YAML document: %w", err)
		}
		return nil
	}

	configMap, err := argus.ParseConfig(data, format)
	if err != nil {
		return err
	}
	return bindMap(configMap, out)
}

func bindMap(configMap map[string]interface{}, out interface{}) error {
	if configMap == nil {
		return fmt.Errorf("configuration map is nil")
	}
	jsonBytes, err := json.Marshal(nestDottedKeys(configMap))
	if err != nil {
		return fmt.Errorf("failed to marshal config map to JSON: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, out); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// nestDottedKeys turns flat "status.backend" keys, as produced by the
// properties and INI parsers, into nested maps. Explicitly nested values win
// over dotted ones. The input is not modified.
func nestDottedKeys(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if strings.Contains(k, ".") {
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			v = nestDottedKeys(nested)
		}
		out[k] = v
	}
	for k, v := range in {
		if !strings.Contains(k, ".") {
			continue
		}
		parts := strings.Split(k, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]interface{})
			if !ok {
				if _, taken := node[part]; taken {
					node = nil
					break
				}
				child = make(map[string]interface{})
				node[part] = child
			}
			node = child
		}
		if node == nil {
			continue
		}
		leaf := parts[len(parts)-1]
		if _, exists := node[leaf]; !exists {
			node[leaf] = v
		}
	}
	return out
}
