package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/loomhq/loom/pkg/config"
	"github.com/loomhq/loom/pkg/convo"
)

// RunCmd sends a single prompt through the orchestrator and exits once
// the turn loop reports completion or escalation (spec.md §6, §7).
type RunCmd struct {
	Prompt      string   `required:"" help:"User prompt to send."`
	Model       string   `help:"Override the configured model name."`
	Host        string   `help:"Override the configured Ollama host."`
	Workdir     string   `help:"Working directory the filesystem/execution/search/analysis tools operate in." type:"path"`
	AutoApprove []string `name:"auto-approve" help:"Tool categories to auto-approve without prompting (repeatable)." placeholder:"CATEGORY"`
}

func (c *RunCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config, c.Model, c.Host)
	if err != nil {
		return err
	}

	sess, err := buildSession(cfg, c.Workdir, c.AutoApprove, false)
	if err != nil {
		return err
	}
	sess.orchestrator.OnText = func(s string) { fmt.Print(s) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	history := convo.NewHistory()
	history.Append(convo.NewUserMessage(c.Prompt))

	result, err := sess.orchestrator.Run(ctx, history)
	fmt.Println()
	if err != nil {
		return err
	}
	if result.SessionShouldEnd {
		return fmt.Errorf("session ended: %s", result.Reason)
	}
	return nil
}

// loadConfig loads the config file (or defaults), then applies CLI
// overrides for model/host before validating.
func loadConfig(path, model, host string) (*config.Config, error) {
	loader := config.NewLoader(config.LoaderOptions{Path: path})
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if model != "" {
		cfg.LLM.Model = model
	}
	if host != "" {
		cfg.LLM.Host = host
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
