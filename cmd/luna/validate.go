// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lunacore/luna/pkg/config"
)

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	ConfigPath  string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the expanded configuration (defaults applied, env vars resolved)."`
}

func (c *ValidateCmd) Run(cli *CLI, ctx context.Context) error {
	_ = config.LoadEnvFiles()

	cfg, loader, err := config.LoadConfigFile(ctx, c.ConfigPath)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if loader != nil {
		defer loader.Close()
	}

	fmt.Println("config is valid")
	if c.PrintConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
	return nil
}
