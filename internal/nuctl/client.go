// Package nuctl wraps the nuclio CLI, the deployment gateway for fusion
// groups. All operations shell out through a CommandRunner and report
// failures as fusion.GatewayError carrying the captured diagnostic output.
package nuctl

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/fusiond/internal/fusion"
	"github.com/danmuck/fusiond/internal/observability"
	"github.com/danmuck/fusiond/internal/tools"
)

// Routing headers understood by the dispatch runtime inside deployed groups.
const (
	HeaderTaskName      = "Task-Name"
	HeaderServerAddress = "Fusionizer-Server-Address"
)

// Config holds the global flags applied to every nuctl command.
type Config struct {
	Namespace  string
	Registry   string
	Kubeconfig string
	Platform   string
}

// Client is the nuctl-backed deployment gateway.
type Client struct {
	cfg    Config
	runner tools.CommandRunner
}

func New(cfg Config, runner tools.CommandRunner) *Client {
	if cfg.Platform == "" {
		cfg.Platform = "auto"
	}
	return &Client{cfg: cfg, runner: runner}
}

// Probe verifies the nuctl binary is usable. A failing probe is fatal at
// startup: without the platform CLI nothing can be deployed.
func (c *Client) Probe() error {
	_, stderr, _, err := c.runner.Run("nuctl", "version")
	if err != nil {
		return fmt.Errorf("nuctl unavailable: %w: %s", err, strings.TrimSpace(string(stderr)))
	}
	return nil
}

func (c *Client) globalFlags() []string {
	flags := []string{
		"--namespace", c.cfg.Namespace,
		"--registry", c.cfg.Registry,
		"--platform", c.cfg.Platform,
	}
	if c.cfg.Kubeconfig != "" {
		flags = append(flags, "--kubeconfig", c.cfg.Kubeconfig)
	}
	return flags
}

func (c *Client) exec(op, group string, args ...string) (string, error) {
	args = append(args, c.globalFlags()...)
	start := time.Now()
	stdout, stderr, code, err := c.runner.Run("nuctl", args...)
	observability.RecordGatewayOp(op, err == nil, time.Since(start))
	if err != nil {
		gwErr := &fusion.GatewayError{
			Op:     op,
			Group:  group,
			Detail: strings.TrimSpace(string(stderr)),
			Err:    err,
		}
		log.Error().
			Str("op", op).
			Str("group", group).
			Int("exit_code", code).
			Str("stderr", gwErr.Detail).
			Msg("nuctl command failed")
		return string(stdout), gwErr
	}
	log.Info().
		Str("op", op).
		Str("group", group).
		Msg("nuctl command succeeded")
	return string(stdout), nil
}

// Deploy deploys a built fusion group from its artifact directory.
func (c *Client) Deploy(groupName, artifactPath string) (string, error) {
	return c.exec("deploy", groupName,
		"deploy", groupName,
		"--path", artifactPath,
		"--file", filepath.Join(artifactPath, "function.yaml"),
	)
}

// Delete removes a deployed fusion group from the platform.
func (c *Client) Delete(groupName string) (string, error) {
	return c.exec("delete", groupName, "delete", "function", groupName)
}

// Describe returns the platform status of a deployed fusion group.
func (c *Client) Describe(groupName string) (string, error) {
	return c.exec("describe", groupName, "get", "function", groupName)
}

// Invoke calls one task of a deployed fusion group, passing the routing
// headers the dispatch runtime requires.
func (c *Client) Invoke(groupName, taskName, serverAddr string, body []byte) (string, error) {
	headers := fmt.Sprintf("%s=%s,%s=%s",
		HeaderTaskName, taskName,
		HeaderServerAddress, serverAddr,
	)
	return c.exec("invoke", groupName,
		"invoke", groupName,
		"--content-type", "application/json",
		"--body", string(body),
		"--headers", headers,
	)
}
