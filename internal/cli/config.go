// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chriskrycho/volta-networking-repro/pkg/vnr"
)

// applyConfigDefaults merges values from a config file into the settings
// for any flag the user did not set explicitly. With no --config it
// looks for ~/.config/vnr.{json,yaml,yml}.
func applyConfigDefaults(cmd *cobra.Command, ro *RootOpts, dst *vnr.Settings) error {
	path := ro.Config
	if path == "" {
		home, _ := os.UserHomeDir()
		jsonPath := filepath.Join(home, ".config", "vnr.json")
		yamlPath := filepath.Join(home, ".config", "vnr.yaml")
		ymlPath := filepath.Join(home, ".config", "vnr.yml")

		if _, err := os.Stat(jsonPath); err == nil {
			path = jsonPath
		} else if _, err := os.Stat(yamlPath); err == nil {
			path = yamlPath
		} else if _, err := os.Stat(ymlPath); err == nil {
			path = ymlPath
		}
	}
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cfg map[string]any

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return fmt.Errorf("invalid YAML config file: %w", err)
		}
	default: // .json or unknown
		if err := json.Unmarshal(b, &cfg); err != nil {
			return fmt.Errorf("invalid JSON config file: %w", err)
		}
	}

	setStr := func(flagName string, set func(string)) {
		if cmd.Flags().Changed(flagName) {
			return
		}
		if v, ok := cfg[flagName]; ok && v != nil {
			set(fmt.Sprint(v))
		}
	}
	setInt := func(flagName string, set func(int)) {
		if cmd.Flags().Changed(flagName) {
			return
		}
		if v, ok := cfg[flagName]; ok && v != nil {
			var x int
			fmt.Sscan(fmt.Sprint(v), &x)
			set(x)
		}
	}
	setBool := func(flagName string, set func(bool)) {
		if cmd.Flags().Changed(flagName) {
			return
		}
		if v, ok := cfg[flagName]; ok && v != nil {
			set(fmt.Sprint(v) == "true")
		}
	}

	setStr("timeout", func(v string) { dst.Timeout = v })
	setInt("retries", func(v int) { dst.Retries = v })
	setStr("backoff-initial", func(v string) { dst.BackoffInitial = v })
	setStr("backoff-max", func(v string) { dst.BackoffMax = v })
	setBool("insecure", func(v bool) { dst.InsecureTLS = v })
	setStr("dns-server", func(v string) { dst.DNSServer = v })
	setStr("user-agent", func(v string) { dst.UserAgent = v })
	setStr("log-level", func(v string) { ro.LogLevel = v })

	return nil
}
