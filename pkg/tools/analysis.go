package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Vulnerability is one finding from a security scan.
type Vulnerability struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Snippet  string `json:"snippet"`
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Fix      string `json:"fix"`
}

type securityRule struct {
	name     string
	re       *regexp.Regexp
	severity string
	fix      string
}

var securityRules = []securityRule{
	{
		name:     "hardcoded-secret",
		re:       regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*["'][A-Za-z0-9+/_=-]{8,}["']`),
		severity: "high",
		fix:      "load the credential from environment or a secrets manager instead of hardcoding it",
	},
	{
		name:     "shell-injection",
		re:       regexp.MustCompile(`exec\.Command\(\s*"sh"\s*,\s*"-c"`),
		severity: "medium",
		fix:      "avoid shelling out with user-controlled input; build argv directly or sanitize the input",
	},
	{
		name:     "sql-string-concat",
		re:       regexp.MustCompile(`(?i)(Query|Exec)\(\s*(fmt\.Sprintf|")[^,)]*\+`),
		severity: "high",
		fix:      "use parameterized queries instead of concatenating SQL strings",
	},
	{
		name:     "insecure-tls",
		re:       regexp.MustCompile(`InsecureSkipVerify:\s*true`),
		severity: "medium",
		fix:      "remove InsecureSkipVerify or gate it behind an explicit opt-in for local development only",
	},
}

// AnalysisConfig configures the AdvancedCodeAnalysisTool's sandbox.
type AnalysisConfig struct {
	WorkingDirectory string
	MaxFileSize      int
}

// SetDefaults fills zero-valued fields with sensible defaults.
func (c *AnalysisConfig) SetDefaults() {
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "."
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 2 << 20
	}
}

// AdvancedCodeAnalysisTool scans source files for common security
// anti-patterns. It is the "security" check referenced by spec.md's
// result-formatter rules; there was no comparable teacher tool to
// ground the rule engine on, so the scanning approach (regex over
// file contents, same containment checks as the search tool) mirrors
// this repo's own SearchTool rather than an upstream example.
type AdvancedCodeAnalysisTool struct {
	config AnalysisConfig
}

// NewAdvancedCodeAnalysisTool builds the tool from the given config.
func NewAdvancedCodeAnalysisTool(cfg AnalysisConfig) *AdvancedCodeAnalysisTool {
	cfg.SetDefaults()
	return &AdvancedCodeAnalysisTool{config: cfg}
}

func (t *AdvancedCodeAnalysisTool) Info() Info {
	return Info{
		Name:        "advanced-code-analysis",
		Description: "Scan source files for common security anti-patterns: hardcoded secrets, shell injection, unparameterized SQL, insecure TLS settings.",
		Category:    "analysis",
		Parameters: []Parameter{
			{Name: "path", Kind: "string", Description: "File or directory to scan, relative to the working directory", Default: "."},
			{Name: "operation", Kind: "string", Description: "Analysis kind to run", Default: "security", Enum: []string{"security"}},
		},
		DisplayOutput: "text",
	}
}

func (t *AdvancedCodeAnalysisTool) Execute(ctx context.Context, params map[string]any) (Result, error) {
	path, _ := params["path"].(string)
	if path == "" {
		path = "."
	}

	fullPath, err := t.resolvePath(path)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		err = fmt.Errorf("failed to stat path: %w", err)
		return Result{Success: false, Error: err.Error()}, err
	}

	var files []string
	if info.IsDir() {
		walkErr := filepath.Walk(fullPath, func(p string, fi os.FileInfo, err error) error {
			if err != nil || fi.IsDir() || fi.Size() > int64(t.config.MaxFileSize) {
				return nil
			}
			files = append(files, p)
			return nil
		})
		if walkErr != nil {
			return Result{Success: false, Error: walkErr.Error()}, walkErr
		}
	} else {
		files = append(files, fullPath)
	}

	var vulns []Vulnerability
	checksPassed := 0
	for _, f := range files {
		select {
		case <-ctx.Done():
			return Result{Success: false, Error: ctx.Err().Error()}, ctx.Err()
		default:
		}
		content, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		rel, _ := filepath.Rel(t.config.WorkingDirectory, f)
		lines := strings.Split(string(content), "\n")
		for _, rule := range securityRules {
			matched := false
			for i, line := range lines {
				if rule.re.MatchString(line) {
					matched = true
					vulns = append(vulns, Vulnerability{
						File:     rel,
						Line:     i + 1,
						Snippet:  strings.TrimSpace(line),
						Rule:     rule.name,
						Severity: rule.severity,
						Fix:      rule.fix,
					})
				}
			}
			if !matched {
				checksPassed++
			}
		}
	}

	riskLevel := "low"
	for _, v := range vulns {
		if v.Severity == "high" {
			riskLevel = "high"
			break
		}
		if v.Severity == "medium" {
			riskLevel = "medium"
		}
	}

	return Result{
		Success: true,
		Data: map[string]any{
			"riskLevel":       riskLevel,
			"vulnerabilities": vulns,
			"filesScanned":    len(files),
		},
		Metadata: map[string]any{
			"riskLevel":    riskLevel,
			"checksPassed": checksPassed,
			"checksTotal":  len(files) * len(securityRules),
			"vulnCount":    len(vulns),
		},
	}, nil
}

func (t *AdvancedCodeAnalysisTool) resolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed, use relative paths")
	}
	cleaned := filepath.Clean(path)
	if strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("directory traversal not allowed (..)")
	}
	absWorkDir, err := filepath.Abs(t.config.WorkingDirectory)
	if err != nil {
		return "", fmt.Errorf("invalid working directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(absWorkDir, cleaned))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if !strings.HasPrefix(absPath, absWorkDir) {
		return "", fmt.Errorf("path escapes working directory")
	}
	return absPath, nil
}
