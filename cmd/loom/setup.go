package main

import (
	"context"
	"fmt"
	"time"

	"github.com/loomhq/loom/internal/httpclient"
	"github.com/loomhq/loom/pkg/approval"
	"github.com/loomhq/loom/pkg/config"
	"github.com/loomhq/loom/pkg/llm"
	"github.com/loomhq/loom/pkg/orchestrator"
	"github.com/loomhq/loom/pkg/tools"
)

// session bundles everything a run needs: the orchestrator plus the
// pieces a caller may want to touch directly (renderer, for printing
// the final transcript).
type session struct {
	orchestrator *orchestrator.Orchestrator
	renderer     tools.Renderer
}

// buildSession wires a Config into a runnable Orchestrator: the LLM
// provider, every built-in tool, the approval/result caches, and the
// dispatcher, following spec.md §4.3's registry wiring and §4.4's
// dispatcher construction.
func buildSession(cfg *config.Config, workdir string, autoApprove []string, interactive bool) (*session, error) {
	provider := buildProvider(cfg.LLM)

	registry, err := buildRegistry(cfg.Tools, workdir)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	state := orchestrator.NewOrchestratorState()
	for _, category := range autoApprove {
		state.ApprovalCache.MemoizeCategory(category, true)
	}
	for _, category := range cfg.Orchestrator.AutoApproveCategories {
		state.ApprovalCache.MemoizeCategory(category, true)
	}

	renderer := tools.NewTermRenderer()
	var collaborator approval.Collaborator
	if interactive {
		collaborator = approval.NewInteractiveCollaborator()
	} else {
		collaborator = autoDenyCollaborator{}
	}

	dispatcher := orchestrator.NewDispatcher(registry, state, collaborator, cfg.Orchestrator, renderer)
	dispatcher.Interactive = interactive

	o := orchestrator.New(provider, registry, dispatcher, state, cfg.Orchestrator)
	o.SystemPrompt = defaultSystemPrompt

	return &session{orchestrator: o, renderer: renderer}, nil
}

func buildProvider(cfg config.LLMConfig) llm.Provider {
	var opts []llm.OllamaOption
	opts = append(opts, llm.WithHTTPClient(httpclient.New(httpclient.WithMaxRetries(cfg.MaxRetries))))
	opts = append(opts, llm.WithTemperature(cfg.Temperature))
	if cfg.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.Think != nil {
		opts = append(opts, llm.WithThinking(*cfg.Think))
	}
	return llm.NewOllamaProvider(cfg.Host, cfg.Model, opts...)
}

func buildRegistry(cfg config.ToolsConfig, workdir string) (*tools.Registry, error) {
	if workdir != "" {
		cfg.Execution.ProjectRoot = workdir
		cfg.Filesystem.WorkingDirectory = workdir
		cfg.Search.WorkingDirectory = workdir
		cfg.Analysis.WorkingDirectory = workdir
	}

	registry := tools.NewRegistry()

	execCfg, err := cfg.Execution.Build()
	if err != nil {
		return nil, err
	}
	if err := registry.Register(tools.NewExecutionTool(execCfg)); err != nil {
		return nil, err
	}
	if err := registry.Register(tools.NewFilesystemTool(cfg.Filesystem.Build())); err != nil {
		return nil, err
	}
	if err := registry.Register(tools.NewSearchTool(cfg.Search.Build())); err != nil {
		return nil, err
	}
	if err := registry.Register(tools.NewAdvancedCodeAnalysisTool(cfg.Analysis.Build())); err != nil {
		return nil, err
	}
	if err := registry.Register(tools.NewPlanningTool()); err != nil {
		return nil, err
	}
	return registry, nil
}

// autoDenyCollaborator answers every confirmation with "no", used for
// non-interactive invocations (piped prompts, CI) where no one is
// present to approve a gated tool call.
type autoDenyCollaborator struct{}

func (autoDenyCollaborator) Confirm(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return false, nil
}

const defaultSystemPrompt = `You are loom, a tool-calling assistant with access to filesystem, ` +
	`shell execution, search, planning, and code-analysis tools. Use tools when they help ` +
	`answer the request; otherwise answer directly in plain text.`

// exitCodeFor maps a run error to a process exit code. Plain errors
// from flag parsing or setup exit 1; nil exits 0.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
