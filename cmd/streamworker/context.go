package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"streamworker/internal/config"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	inspectOnce sync.Once
	inspected   *config.Config
	inspectPath string
	inspectHit  bool
	inspectErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) path() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// ensureConfig loads and validates the configuration and creates the
// working directories.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.path())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// inspectConfig loads the configuration without validation for commands that
// only read local state.
func (c *commandContext) inspectConfig() (*config.Config, string, bool, error) {
	c.inspectOnce.Do(func() {
		cfg, path, exists, err := config.LoadUnvalidated(c.path())
		if err != nil {
			c.inspectErr = err
			return
		}
		c.inspected = cfg
		c.inspectPath = path
		c.inspectHit = exists
	})
	return c.inspected, c.inspectPath, c.inspectHit, c.inspectErr
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
