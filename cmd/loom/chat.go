package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/loomhq/loom/pkg/convo"
)

// ChatCmd runs an interactive REPL: each line the user types becomes a
// user message, and the orchestrator's turn loop runs to completion
// (or session end) before the next prompt.
type ChatCmd struct {
	Model       string   `help:"Override the configured model name."`
	Host        string   `help:"Override the configured Ollama host."`
	Workdir     string   `help:"Working directory the filesystem/execution/search/analysis tools operate in." type:"path"`
	AutoApprove []string `name:"auto-approve" help:"Tool categories to auto-approve without prompting (repeatable)." placeholder:"CATEGORY"`
}

func (c *ChatCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config, c.Model, c.Host)
	if err != nil {
		return err
	}

	sess, err := buildSession(cfg, c.Workdir, c.AutoApprove, true)
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
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("loom chat — type a message, Ctrl+C to exit.")
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		history.Append(convo.NewUserMessage(line))
		result, err := sess.orchestrator.Run(ctx, history)
		fmt.Println()
		if err != nil {
			sess.renderer.Error(err.Error())
			continue
		}
		if result.SessionShouldEnd {
			sess.renderer.Warn(fmt.Sprintf("session ended: %s", result.Reason))
			return nil
		}
	}
}
