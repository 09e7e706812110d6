package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Formatter converts a raw Result into a terse, model-friendly
// rendering for the follow-up tool-result message, per tool.
type Formatter struct{}

// NewFormatter builds a Formatter. It is stateless; tool-specific
// rendering is dispatched on toolName and operation alone.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Format renders result for the given tool call. priorFailures is
// the number of times this exact call signature has already failed
// (the turn loop passes an approximation: 2 for a blocked signature,
// 0 otherwise); ≥2 triggers an additional "try a different approach"
// warning.
func (f *Formatter) Format(toolName string, params map[string]any, result Result, priorFailures int) string {
	if !result.Success {
		return f.formatFailure(toolName, params, result, priorFailures)
	}

	switch toolName {
	case "filesystem":
		return f.formatFilesystem(params, result)
	case "search":
		return f.formatSearch(result)
	case "advanced-code-analysis":
		return f.formatAnalysis(params, result)
	default:
		return f.formatGenericSuccess(result)
	}
}

func (f *Formatter) formatFilesystem(params map[string]any, result Result) string {
	op, _ := params["operation"].(string)
	switch op {
	case "list":
		return f.formatFilesystemList(result)
	case "write":
		return f.formatFilesystemWrite(result)
	case "exists":
		return f.formatFilesystemExists(result)
	default:
		return f.formatGenericSuccess(result)
	}
}

func (f *Formatter) formatFilesystemList(result Result) string {
	entries, _ := result.Data.([]listEntry)
	total, _ := result.Metadata["total"].(int)
	dirCount, _ := result.Metadata["dirCount"].(int)
	fileCount, _ := result.Metadata["fileCount"].(int)

	var b strings.Builder
	fmt.Fprintf(&b, "%d items (%d directories, %d files)\n", total, dirCount, fileCount)

	limit := 20
	if len(entries) < limit {
		limit = len(entries)
	}
	for _, e := range entries[:limit] {
		icon := "📄"
		sizeInfo := fmt.Sprintf(" (%d bytes)", e.Size)
		if e.IsDir {
			icon = "📁"
			sizeInfo = ""
		}
		fmt.Fprintf(&b, "%s %s%s\n", icon, e.Name, sizeInfo)
	}
	if total > limit {
		fmt.Fprintf(&b, "… %d more entries not shown\n", total-limit)
	}
	return b.String()
}

func (f *Formatter) formatFilesystemWrite(result Result) string {
	path, _ := result.Metadata["path"].(string)
	size, _ := result.Metadata["size"].(int)
	return fmt.Sprintf(
		"File written successfully: %s (%d bytes). You do NOT need to create this file again.",
		path, size,
	)
}

func (f *Formatter) formatFilesystemExists(result Result) string {
	path, _ := result.Metadata["path"].(string)
	confirmed, _ := result.Metadata["confirmed"].(bool)
	if confirmed {
		return fmt.Sprintf("confirmed: %s exists", path)
	}
	return fmt.Sprintf("not confirmed: %s does not exist", path)
}

func (f *Formatter) formatSearch(result Result) string {
	matches, _ := result.Data.([]match)
	total, _ := result.Metadata["totalMatches"].(int)
	filesScanned, _ := result.Metadata["filesScanned"].(int)
	truncated, _ := result.Metadata["truncated"].(bool)

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matches across %d files scanned.\n", total, filesScanned)

	limit := 10
	if len(matches) < limit {
		limit = len(matches)
	}
	for _, m := range matches[:limit] {
		fmt.Fprintf(&b, "%s:%d:%d: %s\n", m.Path, m.Line, m.Col, trimTo(m.Content, 120))
	}
	if truncated || total > limit {
		fmt.Fprintf(&b, "… overflow: %d additional matches not shown\n", total-limit)
	}
	return b.String()
}

func (f *Formatter) formatAnalysis(params map[string]any, result Result) string {
	data, _ := result.Data.(map[string]any)
	riskLevel, _ := data["riskLevel"].(string)
	checksPassed, _ := result.Metadata["checksPassed"].(int)
	vulns, _ := data["vulnerabilities"].([]Vulnerability)

	var b strings.Builder
	fmt.Fprintf(&b, "Risk level: %s. Checks passed: %d.\n", riskLevel, checksPassed)

	limit := 5
	if len(vulns) < limit {
		limit = len(vulns)
	}
	for _, v := range vulns[:limit] {
		fmt.Fprintf(&b, "- %s:%d [%s/%s] %s — fix: %s\n", v.File, v.Line, v.Rule, v.Severity, trimTo(v.Snippet, 100), v.Fix)
	}
	if len(vulns) > limit {
		fmt.Fprintf(&b, "… %d more vulnerabilities not shown\n", len(vulns)-limit)
	}

	recommendations := recommendationsFor(vulns)
	recLimit := 5
	if len(recommendations) < recLimit {
		recLimit = len(recommendations)
	}
	for _, r := range recommendations[:recLimit] {
		fmt.Fprintf(&b, "Recommendation: %s\n", r)
	}

	b.WriteString("You may follow up with filesystem.write to apply fixes if the user asked for a fix.\n")
	return b.String()
}

func recommendationsFor(vulns []Vulnerability) []string {
	seen := make(map[string]bool)
	var recs []string
	for _, v := range vulns {
		if seen[v.Rule] {
			continue
		}
		seen[v.Rule] = true
		recs = append(recs, v.Fix)
	}
	return recs
}

func (f *Formatter) formatGenericSuccess(result Result) string {
	serialized, err := json.Marshal(result.Data)
	if err != nil {
		serialized = []byte(fmt.Sprintf("%v", result.Data))
	}
	return fmt.Sprintf("Tool execution successful. Result: %s", serialized)
}

func (f *Formatter) formatFailure(toolName string, params map[string]any, result Result, priorFailures int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tool execution failed. Error: %s\n", result.Error)
	b.WriteString(recoveryGuidance(toolName, params, result))
	if priorFailures >= 2 {
		b.WriteString("This exact call has now failed repeatedly; try a different approach instead of repeating it.\n")
	}
	return b.String()
}

func recoveryGuidance(toolName string, params map[string]any, result Result) string {
	switch toolName {
	case "advanced-code-analysis":
		return "If analysis failed because the file does not exist yet, call filesystem.write first to create it.\n"
	case "filesystem":
		return "Check the path is relative to the working directory and does not escape it.\n"
	case "execution":
		return "Check the command is allowed and the working directory is inside the project root.\n"
	default:
		return ""
	}
}

func trimTo(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
