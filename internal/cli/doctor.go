package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/tobert/traceview/internal/model"
)

// DoctorCommand returns the CLI command definition for the 'doctor' subcommand.
// This command runs diagnostic checks on the binary, the resolved config
// and every trace source it names.
func DoctorCommand(version string) *cli.Command {
	return &cli.Command{
		Name:      "doctor",
		Usage:     "Diagnose common setup and configuration issues",
		ArgsUsage: "[trace.json]",
		Description: `Run checks to verify traceview is properly configured.

This command checks:
  - Binary location and permissions
  - Trace file (exists and parses)
  - OTLP JSONL directories and the collector config that names them
  - MCP configuration file (mcp_settings.json)
  - Optional dependencies (otel-cli)

Exit codes:
  0 - All critical checks passed
  1 - One or more issues found`,
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Trace JSON file"},
			&cli.StringSliceFlag{Name: "jsonl-dir", Usage: "OTLP JSONL directory"},
			&cli.StringFlag{Name: "otel-config", Usage: "Collector config with file exporters"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				fmt.Printf("✗ Could not load config\n  %v\n", err)
				return err
			}
			return runDoctorWithUtils(os.Stdout, version, cfg, &realFsUtils{})
		},
	}
}

type checkResult struct {
	Name       string
	Status     string // "pass", "warn", "fail"
	Message    string
	Suggestion string
	IsCritical bool
}

type fsUtils interface {
	Executable() (string, error)
	Stat(name string) (os.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	UserHomeDir() (string, error)
	Getwd() (string, error)
	LookPath(file string) (string, error)
}

type realFsUtils struct{}

func (r *realFsUtils) Executable() (string, error)           { return os.Executable() }
func (r *realFsUtils) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }
func (r *realFsUtils) ReadFile(name string) ([]byte, error)  { return os.ReadFile(name) }
func (r *realFsUtils) UserHomeDir() (string, error)          { return os.UserHomeDir() }
func (r *realFsUtils) Getwd() (string, error)                { return os.Getwd() }
func (r *realFsUtils) LookPath(file string) (string, error)  { return exec.LookPath(file) }

type check func(utils fsUtils, cfg *Config) []checkResult

func single(fn func(fsUtils) checkResult) check {
	return func(utils fsUtils, _ *Config) []checkResult { return []checkResult{fn(utils)} }
}

func runDoctorWithUtils(w io.Writer, version string, cfg *Config, utils fsUtils) error {
	fmt.Fprintf(w, "🔍 traceview doctor v%s\n\n", version)

	checks := []check{
		single(checkBinaryLocation),
		single(checkBinaryExecutable),
		checkTraceFile,
		checkOtelConfig,
		checkJSONLDirs,
		single(checkMCPConfig),
		single(checkOtelCLI),
	}

	var results []checkResult
	for _, c := range checks {
		for _, result := range c(utils, cfg) {
			results = append(results, result)
			printCheckResult(w, result)
		}
	}

	fmt.Fprintln(w)
	summary := summarizeResults(results)
	printSummary(w, summary)

	if summary.FailCount > 0 {
		return fmt.Errorf("found %d issues that need attention", summary.FailCount)
	}

	return nil
}

func printCheckResult(w io.Writer, result checkResult) {
	var icon string
	switch result.Status {
	case "pass":
		icon = "✓"
	case "warn":
		icon = "⚠"
	case "fail":
		icon = "✗"
	}

	fmt.Fprintf(w, "%s %s\n", icon, result.Message)

	if result.Suggestion != "" {
		fmt.Fprintf(w, "  %s\n", result.Suggestion)
	}
}

type resultSummary struct {
	PassCount int
	WarnCount int
	FailCount int
}

func summarizeResults(results []checkResult) resultSummary {
	var summary resultSummary
	for _, r := range results {
		switch r.Status {
		case "pass":
			summary.PassCount++
		case "warn":
			summary.WarnCount++
		case "fail":
			summary.FailCount++
		}
	}
	return summary
}

func printSummary(w io.Writer, summary resultSummary) {
	if summary.FailCount > 0 {
		fmt.Fprintf(w, "❌ Found %d issue(s) that need attention\n", summary.FailCount)
		if summary.WarnCount > 0 {
			fmt.Fprintf(w, "⚠️  %d warning(s)\n", summary.WarnCount)
		}
	} else if summary.WarnCount > 0 {
		fmt.Fprintf(w, "✅ All critical checks passed!\n")
		fmt.Fprintf(w, "⚠️  %d optional warning(s)\n", summary.WarnCount)
		fmt.Fprintf(w, "💡 Run 'traceview serve --verbose' to open the viewer\n")
	} else {
		fmt.Fprintf(w, "✅ All checks passed!\n")
		fmt.Fprintf(w, "💡 Run 'traceview serve --verbose' to open the viewer\n")
	}
}

// Check 1: Binary location
func checkBinaryLocation(utils fsUtils) checkResult {
	executable, err := utils.Executable()
	if err != nil {
		return checkResult{
			Name:       "binary_location",
			Status:     "fail",
			Message:    "Could not determine binary location",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	absPath, err := filepath.Abs(executable)
	if err != nil {
		absPath = executable
	}

	return checkResult{
		Name:    "binary_location",
		Status:  "pass",
		Message: fmt.Sprintf("Binary location: %s", absPath),
	}
}

// Check 2: Binary executable
func checkBinaryExecutable(utils fsUtils) checkResult {
	executable, err := utils.Executable()
	if err != nil {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Could not check if binary is executable",
			IsCritical: true,
		}
	}

	info, err := utils.Stat(executable)
	if err != nil || info == nil {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Could not stat binary",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	if info.Mode()&0111 == 0 {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Binary is not executable",
			Suggestion: fmt.Sprintf("Run: chmod +x %s", executable),
			IsCritical: true,
		}
	}

	return checkResult{
		Name:    "binary_executable",
		Status:  "pass",
		Message: "Binary is executable",
	}
}

// Check 3: trace file parses the same way the viewer will load it
func checkTraceFile(utils fsUtils, cfg *Config) []checkResult {
	if cfg.TraceFile == "" {
		return []checkResult{{
			Name:    "trace_file",
			Status:  "pass",
			Message: "No trace file configured; serve and mcp will collect spans over OTLP",
		}}
	}

	data, err := utils.ReadFile(cfg.TraceFile)
	if err != nil {
		return []checkResult{{
			Name:       "trace_file",
			Status:     "fail",
			Message:    fmt.Sprintf("Could not read trace file %s", cfg.TraceFile),
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}}
	}

	traces, err := model.Parse(data)
	if err != nil {
		return []checkResult{{
			Name:       "trace_file",
			Status:     "fail",
			Message:    fmt.Sprintf("Trace file %s does not parse", cfg.TraceFile),
			Suggestion: err.Error(),
			IsCritical: true,
		}}
	}

	spans := 0
	for _, t := range traces {
		spans += len(t.Spans)
	}
	return []checkResult{{
		Name:    "trace_file",
		Status:  "pass",
		Message: fmt.Sprintf("Trace file %s: %d traces, %d spans", cfg.TraceFile, len(traces), spans),
	}}
}

// Check 4: collector config names file exporters
func checkOtelConfig(utils fsUtils, cfg *Config) []checkResult {
	if cfg.OtelConfig == "" {
		return nil
	}

	data, err := utils.ReadFile(cfg.OtelConfig)
	if err != nil {
		return []checkResult{{
			Name:       "otel_config",
			Status:     "fail",
			Message:    fmt.Sprintf("Could not read collector config %s", cfg.OtelConfig),
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}}
	}

	dirs, err := parseOtelConfigData(data)
	if err != nil {
		return []checkResult{{
			Name:       "otel_config",
			Status:     "fail",
			Message:    fmt.Sprintf("Collector config %s is not valid YAML", cfg.OtelConfig),
			Suggestion: err.Error(),
			IsCritical: true,
		}}
	}
	if len(dirs) == 0 {
		return []checkResult{{
			Name:       "otel_config",
			Status:     "warn",
			Message:    fmt.Sprintf("Collector config %s has no file exporters", cfg.OtelConfig),
			Suggestion: `Add an exporter named "file" (or "file/<name>") with a path to export JSONL`,
		}}
	}

	return []checkResult{{
		Name:    "otel_config",
		Status:  "pass",
		Message: fmt.Sprintf("Collector config %s: %d file exporter directories", cfg.OtelConfig, len(dirs)),
	}}
}

// Check 5: every JSONL directory exists
func checkJSONLDirs(utils fsUtils, cfg *Config) []checkResult {
	dirs := append([]string(nil), cfg.JSONLDirs...)
	if cfg.OtelConfig != "" {
		if data, err := utils.ReadFile(cfg.OtelConfig); err == nil {
			if found, err := parseOtelConfigData(data); err == nil {
				dirs = append(dirs, found...)
			}
		}
	}

	var results []checkResult
	for _, dir := range dirs {
		info, err := utils.Stat(dir)
		switch {
		case err != nil || info == nil:
			results = append(results, checkResult{
				Name:       "jsonl_dir",
				Status:     "warn",
				Message:    fmt.Sprintf("JSONL directory %s does not exist yet", dir),
				Suggestion: "It will be skipped until the collector creates it",
			})
		case !info.IsDir():
			results = append(results, checkResult{
				Name:       "jsonl_dir",
				Status:     "fail",
				Message:    fmt.Sprintf("JSONL path %s is not a directory", dir),
				IsCritical: true,
			})
		default:
			results = append(results, checkResult{
				Name:    "jsonl_dir",
				Status:  "pass",
				Message: fmt.Sprintf("JSONL directory %s", dir),
			})
		}
	}
	return results
}

// Check 6: MCP configuration
func checkMCPConfig(utils fsUtils) checkResult {
	configPath := getMCPConfigPath(utils)
	allPaths := getMCPConfigPaths(utils)

	if _, err := utils.Stat(configPath); err != nil {
		executable, _ := utils.Executable()
		absPath, _ := filepath.Abs(executable)

		locationsList := ""
		for _, p := range allPaths {
			locationsList += fmt.Sprintf("  - %s\n", p)
		}
		first := ""
		if len(allPaths) > 0 {
			first = allPaths[0]
		}

		suggestion := fmt.Sprintf(`MCP config not found. Checked:
%s
  For Claude Code, create at: %s
  For other MCP agents, use their config location

  Example config:
  {
    "mcpServers": {
      "traceview": {
        "command": "%s",
        "args": ["mcp", "trace.json"]
      }
    }
  }`, locationsList, first, absPath)

		return checkResult{
			Name:       "mcp_config",
			Status:     "warn",
			Message:    "MCP config not found",
			Suggestion: suggestion,
		}
	}

	data, err := utils.ReadFile(configPath)
	if err != nil {
		return checkResult{
			Name:       "mcp_config",
			Status:     "fail",
			Message:    "Could not read MCP config",
			Suggestion: fmt.Sprintf("Error reading %s: %v", configPath, err),
			IsCritical: true,
		}
	}

	var config map[string]interface{}
	if err := json.Unmarshal(data, &config); err != nil {
		return checkResult{
			Name:       "mcp_config",
			Status:     "fail",
			Message:    "MCP config is not valid JSON",
			Suggestion: fmt.Sprintf("Error parsing %s: %v", configPath, err),
			IsCritical: true,
		}
	}

	agentName := "MCP agent"
	if strings.Contains(configPath, "claude-code") || strings.Contains(configPath, ".claude") {
		agentName = "Claude Code"
	} else if strings.Contains(configPath, ".gemini") {
		agentName = "Gemini CLI"
	}

	mcpServers, ok := config["mcpServers"].(map[string]interface{})
	if !ok {
		return checkResult{
			Name:       "mcp_config",
			Status:     "warn",
			Message:    fmt.Sprintf("%s config found: %s", agentName, configPath),
			Suggestion: "Config does not contain 'mcpServers' section",
		}
	}

	entry, ok := mcpServers["traceview"].(map[string]interface{})
	if !ok {
		return checkResult{
			Name:       "mcp_config",
			Status:     "warn",
			Message:    fmt.Sprintf("%s config found: %s", agentName, configPath),
			Suggestion: "Config does not contain a 'traceview' server entry - add one to query traces from the agent",
		}
	}

	configuredCommand, _ := entry["command"].(string)
	executable, _ := utils.Executable()
	absExecutable, _ := filepath.Abs(executable)

	if configuredCommand != "" && configuredCommand != absExecutable {
		return checkResult{
			Name:    "mcp_config",
			Status:  "warn",
			Message: fmt.Sprintf("MCP config found: %s", configPath),
			Suggestion: fmt.Sprintf("Config path (%s) differs from current binary (%s)\n  Update config to use current binary if needed",
				configuredCommand, absExecutable),
		}
	}

	return checkResult{
		Name:    "mcp_config",
		Status:  "pass",
		Message: fmt.Sprintf("%s config found: %s", agentName, configPath),
	}
}

// Check 7: otel-cli availability
func checkOtelCLI(utils fsUtils) checkResult {
	path, err := utils.LookPath("otel-cli")
	if err == nil {
		return checkResult{
			Name:    "otel_cli",
			Status:  "pass",
			Message: fmt.Sprintf("Optional: otel-cli found at %s", path),
		}
	}

	return checkResult{
		Name:    "otel_cli",
		Status:  "warn",
		Message: "Optional: otel-cli not found",
		Suggestion: `otel-cli is handy for sending spans from shell scripts; 'traceview send-demo' covers the basics.
  Install with: go install github.com/tobert/otel-cli@latest`,
	}
}

// getMCPConfigPaths returns possible MCP config file paths for various agents
func getMCPConfigPaths(utils fsUtils) []string {
	homeDir, err := utils.UserHomeDir()
	if err != nil {
		return nil
	}

	cwd, _ := utils.Getwd()

	var paths []string

	// Check project-level configs first (more specific)
	if cwd != "" {
		paths = append(paths,
			filepath.Join(cwd, ".gemini", "settings.json"), // Gemini CLI (per-project)
			filepath.Join(cwd, ".claude", "settings.json"), // Claude (if per-project exists)
		)
	}

	// Then check global configs
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(homeDir, "AppData", "Roaming")
		}
		paths = append(paths, filepath.Join(appData, "Claude Code", "mcp_settings.json"))
	case "darwin":
		paths = append(paths, filepath.Join(homeDir, ".config", "claude-code", "mcp_settings.json"))
	default: // linux and others
		paths = append(paths, filepath.Join(homeDir, ".config", "claude-code", "mcp_settings.json"))
	}

	return paths
}

// getMCPConfigPath returns the first existing MCP config file path
func getMCPConfigPath(utils fsUtils) string {
	paths := getMCPConfigPaths(utils)
	for _, path := range paths {
		if _, err := utils.Stat(path); err == nil {
			return path
		}
	}
	// Return first path as default for error messages
	if len(paths) > 0 {
		return paths[0]
	}
	return ""
}
