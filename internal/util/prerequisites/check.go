// Package prerequisites checks that the tools a plan relies on exist on
// its target before any step runs.
package prerequisites

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg-perl/petprov/internal/config"
	"github.com/pkg-perl/petprov/internal/provisioning/host"
	"github.com/pkg-perl/petprov/internal/util/async"
)

// maxConcurrentLookups bounds the lookups in flight, which over SSH is the
// number of concurrent sessions.
const maxConcurrentLookups = 4

// Tool is a binary that must be on the target's PATH.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains which steps use the tool.
	Description string
}

// envTool passes environment variables to a command.
var envTool = Tool{Name: "env", Required: true, Description: "sets command environment"}

// kindTools lists the binaries each step kind runs on the target.
var kindTools = map[config.StepKind][]Tool{
	config.KindPackage: {
		{Name: "apt-get", Required: true, Description: "installs packages"},
		envTool,
	},
	config.KindFile: {
		{Name: "chown", Required: true, Description: "sets file ownership"},
		{Name: "chmod", Required: true, Description: "sets file mode"},
	},
	config.KindService: {{Name: "systemctl", Required: true, Description: "drives services"}},
	config.KindUser: {
		{Name: "id", Required: true, Description: "checks accounts"},
		{Name: "useradd", Required: true, Description: "creates accounts"},
	},
}

// ToolsFor returns the tools the steps need, sorted by name. sh is always
// needed; sudo is needed as soon as a step runs as another user, and env as
// soon as a step sets environment variables.
func ToolsFor(steps []config.Step) []Tool {
	byName := map[string]Tool{
		"sh": {Name: "sh", Required: true, Description: "runs commands and guards"},
	}
	for _, s := range steps {
		for _, t := range kindTools[s.Kind] {
			byName[t.Name] = t
		}
		if s.User != "" && s.Kind == config.KindCommand {
			byName["sudo"] = Tool{Name: "sudo", Required: true, Description: "runs commands as other users"}
		}
		if len(s.Env) > 0 && s.Kind == config.KindCommand {
			byName[envTool.Name] = envTool
		}
	}

	tools := make([]Tool, 0, len(byName))
	for _, t := range byName {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool  Tool
	Found bool
	Path  string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.Description))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools on target: %s", strings.Join(missing, ", "))
}

// Check looks up every tool on the target through exec. A tool that is
// not found is recorded as missing; an error running the lookup itself is
// returned.
func Check(ctx context.Context, exec host.Executor, tools []Tool) (*CheckResults, error) {
	results := &CheckResults{Results: make([]CheckResult, len(tools))}

	var mu sync.Mutex
	tasks := make([]async.Task, len(tools))
	for i, tool := range tools {
		tasks[i] = async.Task{Name: tool.Name, Func: func(ctx context.Context) error {
			lookup := host.Shell(`command -v "$1"`)
			lookup.Args = append(lookup.Args, "sh", tool.Name)
			res, err := exec.Run(ctx, lookup)
			if err != nil {
				return err
			}

			result := CheckResult{Tool: tool}
			if res.ExitCode == 0 {
				result.Found = true
				result.Path = strings.TrimSpace(res.Stdout)
			}
			mu.Lock()
			results.Results[i] = result
			mu.Unlock()
			return nil
		}}
	}

	if err := async.RunParallel(ctx, tasks, maxConcurrentLookups); err != nil {
		return nil, fmt.Errorf("failed to look up tools: %w", err)
	}

	for _, r := range results.Results {
		if !r.Found {
			results.Missing = append(results.Missing, r.Tool)
		}
	}
	return results, nil
}
