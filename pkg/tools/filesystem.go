package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FilesystemConfig configures the FilesystemTool's sandbox.
type FilesystemConfig struct {
	WorkingDirectory  string
	MaxFileSize       int      // bytes; 0 means use the 1MB default
	AllowedExtensions []string // empty = allow all
	DeniedExtensions  []string
	BackupOnOverwrite bool
}

// SetDefaults fills zero-valued fields with sensible defaults.
func (c *FilesystemConfig) SetDefaults() {
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "."
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 1 << 20
	}
}

// FilesystemTool is a single dispatchable tool exposing write/read/list/
// exists operations, all sandboxed to WorkingDirectory.
type FilesystemTool struct {
	config FilesystemConfig
}

// NewFilesystemTool builds a FilesystemTool from the given config.
func NewFilesystemTool(cfg FilesystemConfig) *FilesystemTool {
	cfg.SetDefaults()
	return &FilesystemTool{config: cfg}
}

func (t *FilesystemTool) Info() Info {
	return Info{
		Name:        "filesystem",
		Description: "Read, write, list, and check existence of files within the project working directory.",
		Category:    "filesystem",
		Parameters: []Parameter{
			{Name: "operation", Kind: "string", Description: "write, read, list, or exists", Required: true, Enum: []string{"write", "read", "list", "exists"}},
			{Name: "path", Kind: "string", Description: "File or directory path relative to the working directory", Required: true},
			{Name: "content", Kind: "string", Description: "Content to write (operation=write only)"},
			{Name: "backup", Kind: "boolean", Description: "Create a .bak backup before overwriting (default true)", Default: true},
		},
		DisplayOutput: "text",
	}
}

func (t *FilesystemTool) Execute(ctx context.Context, params map[string]any) (Result, error) {
	op, _ := params["operation"].(string)
	path, _ := params["path"].(string)
	if path == "" {
		return Result{Success: false, Error: "path parameter is required"}, fmt.Errorf("path parameter is required")
	}

	fullPath, err := t.resolvePath(path)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, err
	}

	switch op {
	case "write":
		return t.write(fullPath, path, params)
	case "read":
		return t.read(fullPath, path)
	case "list":
		return t.list(fullPath, path)
	case "exists":
		return t.exists(fullPath, path), nil
	default:
		err := fmt.Errorf("unknown filesystem operation %q", op)
		return Result{Success: false, Error: err.Error()}, err
	}
}

// resolvePath validates path is relative, contains no traversal, and
// stays within the working directory after joining.
func (t *FilesystemTool) resolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed, use a path relative to the working directory")
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

func (t *FilesystemTool) validateExtension(path string) error {
	ext := filepath.Ext(path)
	for _, denied := range t.config.DeniedExtensions {
		if ext == denied {
			return fmt.Errorf("file extension %q is denied", ext)
		}
	}
	if len(t.config.AllowedExtensions) > 0 {
		for _, allowed := range t.config.AllowedExtensions {
			if ext == allowed {
				return nil
			}
		}
		return fmt.Errorf("file extension %q not allowed (allowed: %v)", ext, t.config.AllowedExtensions)
	}
	return nil
}

func (t *FilesystemTool) write(fullPath, relPath string, params map[string]any) (Result, error) {
	content, ok := params["content"].(string)
	if !ok {
		return Result{Success: false, Error: "content parameter is required"}, fmt.Errorf("content parameter is required")
	}
	if err := t.validateExtension(relPath); err != nil {
		return Result{Success: false, Error: err.Error()}, err
	}
	if len(content) > t.config.MaxFileSize {
		err := fmt.Errorf("content too large: %d bytes (max %d)", len(content), t.config.MaxFileSize)
		return Result{Success: false, Error: err.Error()}, err
	}

	backup := true
	if b, ok := params["backup"].(bool); ok {
		backup = b
	}

	fileExisted := false
	if _, err := os.Stat(fullPath); err == nil {
		fileExisted = true
		if backup && t.config.BackupOnOverwrite {
			if err := copyFile(fullPath, fullPath+".bak"); err != nil {
				err = fmt.Errorf("create backup: %w", err)
				return Result{Success: false, Error: err.Error()}, err
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		err = fmt.Errorf("create directory: %w", err)
		return Result{Success: false, Error: err.Error()}, err
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		err = fmt.Errorf("write file: %w", err)
		return Result{Success: false, Error: err.Error()}, err
	}

	action := "created"
	if fileExisted {
		action = "overwritten"
	}
	return Result{
		Success: true,
		Data:    content,
		Metadata: map[string]any{
			"path":        relPath,
			"size":        len(content),
			"action":      action,
			"fileExisted": fileExisted,
			"backedUp":    fileExisted && backup && t.config.BackupOnOverwrite,
		},
	}, nil
}

func (t *FilesystemTool) read(fullPath, relPath string) (Result, error) {
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return Result{Success: false, Error: err.Error(), Metadata: map[string]any{"path": relPath}}, err
	}
	return Result{
		Success:  true,
		Data:     string(data),
		Metadata: map[string]any{"path": relPath, "size": len(data)},
	}, nil
}

// listEntry is one entry in a filesystem.list Result's Data.
type listEntry struct {
	Name  string
	IsDir bool
	Size  int64
}

func (t *FilesystemTool) list(fullPath, relPath string) (Result, error) {
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return Result{Success: false, Error: err.Error(), Metadata: map[string]any{"path": relPath}}, err
	}

	items := make([]listEntry, 0, len(entries))
	var dirCount, fileCount int
	for _, e := range entries {
		info, err := e.Info()
		var size int64
		if err == nil {
			size = info.Size()
		}
		items = append(items, listEntry{Name: e.Name(), IsDir: e.IsDir(), Size: size})
		if e.IsDir() {
			dirCount++
		} else {
			fileCount++
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	return Result{
		Success: true,
		Data:    items,
		Metadata: map[string]any{
			"path":      relPath,
			"total":     len(items),
			"dirCount":  dirCount,
			"fileCount": fileCount,
		},
	}, nil
}

func (t *FilesystemTool) exists(fullPath, relPath string) Result {
	_, err := os.Stat(fullPath)
	confirmed := err == nil
	return Result{
		Success:  true,
		Data:     confirmed,
		Metadata: map[string]any{"path": relPath, "confirmed": confirmed},
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
