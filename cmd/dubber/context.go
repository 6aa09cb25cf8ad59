package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"dubber/internal/config"
	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/opsserver"
	"dubber/internal/queue"
)

const daemonProbeTimeout = time.Second

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
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

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) opsClient() *opsserver.Client {
	cfg, err := c.ensureConfig()
	if err != nil || strings.TrimSpace(cfg.Ops.Bind) == "" {
		return nil
	}
	return opsserver.NewClient(cfg.Ops.Bind, cfg.Ops.Token, 30*time.Second)
}

// withJobs runs fn against the daemon when it answers, otherwise against
// the queue database.
func (c *commandContext) withJobs(cmd *cobra.Command, fn func(jobAPI) error) error {
	if client := c.opsClient(); client != nil {
		probeCtx, cancel := context.WithTimeout(cmd.Context(), daemonProbeTimeout)
		err := client.Ping(probeCtx)
		cancel()
		if err == nil {
			return fn(&jobHTTPAdapter{client: client})
		}
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer store.Close()
	svc := jobs.New(store, cfg.Pipeline.DefaultTargetLanguage, logging.NewNop())
	return fn(&jobStoreAdapter{svc: svc})
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
