package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/NERVsystems/navermapmcp/pkg/config"
)

// clientServerName is the key of this server under "mcpServers".
const clientServerName = "naver-maps"

// generateClientConfig writes an MCP client configuration (the
// "mcpServers" layout used by desktop MCP clients) that launches this
// binary over stdio. With mergeOnly an existing file is kept and the
// server entry is only added when missing.
func generateClientConfig(path string, mergeOnly bool) error {
	if path == "" {
		return fmt.Errorf("config path cannot be empty")
	}
	if !strings.HasSuffix(path, ".json") {
		return fmt.Errorf("config file must have .json extension")
	}

	cleanPath := filepath.Clean(path)
	if err := validateSafePath(cleanPath); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	doc := map[string]any{}
	if mergeOnly {
		if data, err := os.ReadFile(cleanPath); err == nil {
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse existing config: %w", err)
			}
		}
	}

	servers, _ := doc["mcpServers"].(map[string]any)
	if servers == nil {
		servers = map[string]any{}
	}
	if _, exists := servers[clientServerName]; !exists || !mergeOnly {
		servers[clientServerName] = clientServerEntry()
	}
	doc["mcpServers"] = servers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(cleanPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func clientServerEntry() map[string]any {
	command, err := os.Executable()
	if err != nil {
		command = "navermapmcp"
	}
	return map[string]any{
		"command": command,
		"args":    []string{},
		"env": map[string]string{
			config.EnvClientID:     os.Getenv(config.EnvClientID),
			config.EnvClientSecret: os.Getenv(config.EnvClientSecret),
		},
	}
}

// validateSafePath validates that a path is safe to write to within the current working directory
func validateSafePath(path string) error {
	if filepath.IsAbs(path) {
		return fmt.Errorf("absolute paths are not allowed for security reasons")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	relPath, err := filepath.Rel(cwd, absPath)
	if err != nil {
		return fmt.Errorf("failed to determine relative path: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s", relPath)
	}
	return nil
}
