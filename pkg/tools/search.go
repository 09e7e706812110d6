package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// SearchConfig configures the SearchTool's sandbox and defaults.
type SearchConfig struct {
	WorkingDirectory string
	MaxFileSize      int // bytes; 0 means use the 10MB default
	MaxResults       int // 0 means use the 1000 default
	ContextLines     int
}

// SetDefaults fills zero-valued fields with sensible defaults.
func (c *SearchConfig) SetDefaults() {
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "."
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 10 << 20
	}
	if c.MaxResults == 0 {
		c.MaxResults = 1000
	}
}

// SearchTool runs regex searches over files under WorkingDirectory,
// reporting matches as path:line:col.
type SearchTool struct {
	config SearchConfig
}

// NewSearchTool builds a SearchTool from the given config.
func NewSearchTool(cfg SearchConfig) *SearchTool {
	cfg.SetDefaults()
	return &SearchTool{config: cfg}
}

func (t *SearchTool) Info() Info {
	return Info{
		Name:        "search",
		Description: "Search for regular-expression patterns in files under the working directory, like grep with context lines.",
		Category:    "search",
		Parameters: []Parameter{
			{Name: "pattern", Kind: "string", Description: "Regular expression pattern (Go regex syntax)", Required: true},
			{Name: "path", Kind: "string", Description: "File or directory to search, relative to the working directory", Default: "."},
			{Name: "file_pattern", Kind: "string", Description: "Glob filter for file names, e.g. '*.go'"},
			{Name: "case_insensitive", Kind: "boolean", Default: false},
			{Name: "context_lines", Kind: "number", Description: "Lines of context before/after each match", Default: 2},
			{Name: "max_results", Kind: "number", Description: "Cap on returned matches", Default: 100},
			{Name: "recursive", Kind: "boolean", Default: true},
		},
		DisplayOutput: "text",
	}
}

// match is one regex hit, carrying its own rendering fields so the
// formatter can build "path:line:col" without re-deriving anything.
type match struct {
	Path    string
	Line    int
	Col     int
	Content string
	Context []string
}

func (t *SearchTool) Execute(ctx context.Context, params map[string]any) (Result, error) {
	pattern, _ := params["pattern"].(string)
	if pattern == "" {
		err := fmt.Errorf("pattern parameter is required")
		return Result{Success: false, Error: err.Error()}, err
	}

	searchPath := "."
	if p, ok := params["path"].(string); ok && p != "" {
		searchPath = p
	}
	caseInsensitive, _ := params["case_insensitive"].(bool)
	contextLines := t.config.ContextLines
	if cl, ok := params["context_lines"].(float64); ok {
		contextLines = int(cl)
	}
	maxResults := 100
	if mr, ok := params["max_results"].(float64); ok {
		maxResults = int(mr)
	}
	if maxResults > t.config.MaxResults {
		maxResults = t.config.MaxResults
	}
	recursive := true
	if r, ok := params["recursive"].(bool); ok {
		recursive = r
	}
	filePattern, _ := params["file_pattern"].(string)

	effectivePattern := pattern
	if caseInsensitive {
		effectivePattern = "(?i)" + pattern
	}
	regex, err := regexp.Compile(effectivePattern)
	if err != nil {
		err = fmt.Errorf("invalid regex pattern: %w", err)
		return Result{Success: false, Error: err.Error()}, err
	}

	fullPath, err := t.resolvePath(searchPath)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		err = fmt.Errorf("failed to stat path: %w", err)
		return Result{Success: false, Error: err.Error()}, err
	}

	files, err := t.collectFiles(fullPath, searchPath, filePattern, recursive, info)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, err
	}
	sort.Strings(files)

	var matches []match
	filesScanned := 0
	for _, relPath := range files {
		select {
		case <-ctx.Done():
			return Result{Success: false, Error: ctx.Err().Error()}, ctx.Err()
		default:
		}
		if len(matches) >= maxResults {
			break
		}
		fileMatches, err := t.searchFile(relPath, regex, contextLines)
		if err != nil {
			continue
		}
		filesScanned++
		for _, m := range fileMatches {
			if len(matches) >= maxResults {
				break
			}
			matches = append(matches, m)
		}
	}

	truncated := len(matches) >= maxResults
	return Result{
		Success: true,
		Data:    matches,
		Metadata: map[string]any{
			"pattern":         pattern,
			"path":            searchPath,
			"totalMatches":    len(matches),
			"filesScanned":    filesScanned,
			"caseInsensitive": caseInsensitive,
			"recursive":       recursive,
			"truncated":       truncated,
		},
	}, nil
}

func (t *SearchTool) resolvePath(path string) (string, error) {
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

func (t *SearchTool) collectFiles(fullPath, searchPath, filePattern string, recursive bool, info os.FileInfo) ([]string, error) {
	var files []string
	if !info.IsDir() {
		return []string{searchPath}, nil
	}

	if recursive {
		absWorkDir, absErr := filepath.Abs(t.config.WorkingDirectory)
		if absErr != nil {
			return nil, absErr
		}
		err := filepath.Walk(fullPath, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if fi.IsDir() || fi.Size() > int64(t.config.MaxFileSize) {
				return nil
			}
			if filePattern != "" && !matchesPattern(filepath.Base(path), filePattern) {
				return nil
			}
			rel, relErr := filepath.Rel(absWorkDir, path)
			if relErr != nil {
				return nil
			}
			files = append(files, rel)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return files, nil
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil || fi.Size() > int64(t.config.MaxFileSize) {
			continue
		}
		if filePattern != "" && !matchesPattern(e.Name(), filePattern) {
			continue
		}
		files = append(files, filepath.Join(searchPath, e.Name()))
	}
	return files, nil
}

func (t *SearchTool) searchFile(relPath string, regex *regexp.Regexp, contextLines int) ([]match, error) {
	fullPath := filepath.Join(t.config.WorkingDirectory, relPath)
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(content), "\n")
	var out []match
	for i, line := range lines {
		loc := regex.FindStringIndex(line)
		if loc == nil {
			continue
		}
		var ctxLines []string
		for j := contextLines; j > 0; j-- {
			if i-j >= 0 {
				ctxLines = append(ctxLines, fmt.Sprintf("%6d  %s", i-j+1, lines[i-j]))
			}
		}
		for j := 1; j <= contextLines; j++ {
			if i+j < len(lines) {
				ctxLines = append(ctxLines, fmt.Sprintf("%6d  %s", i+j+1, lines[i+j]))
			}
		}
		out = append(out, match{
			Path:    relPath,
			Line:    i + 1,
			Col:     loc[0] + 1,
			Content: strings.TrimSpace(line),
			Context: ctxLines,
		})
	}
	return out, nil
}

func matchesPattern(filename, pattern string) bool {
	matched, err := filepath.Match(pattern, filename)
	if err != nil {
		return false
	}
	return matched
}
