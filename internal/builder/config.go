package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/fusiond/internal/fusion"
)

// fragment is one task's parsed runtime configuration.
type fragment struct {
	data     map[string]any
	handler  handlerRef
	commands []string
}

// handlerRef is a "file:symbol" entry point split into its parts.
type handlerRef struct {
	File   string
	Symbol string
}

func readFragments(tasks []fusion.Task) (map[string]fragment, error) {
	fragments := make(map[string]fragment, len(tasks))
	for _, task := range tasks {
		frag, err := readFragment(filepath.Join(task.DirPath, ConfigFileName))
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", task.Name, err)
		}
		fragments[task.Name] = frag
	}
	return fragments, nil
}

func readFragment(path string) (fragment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fragment{}, err
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return fragment{}, fmt.Errorf("malformed configuration %s: %w", path, err)
	}

	handlerValue, _ := lookup(data, "spec", "handler").(string)
	file, symbol, ok := strings.Cut(handlerValue, ":")
	if !ok || file == "" || symbol == "" {
		return fragment{}, fmt.Errorf("configuration %s has no usable spec.handler entry point", path)
	}

	var commands []string
	if list, ok := lookup(data, "spec", "build", "commands").([]any); ok {
		for _, item := range list {
			if cmd, ok := item.(string); ok {
				commands = append(commands, cmd)
			}
		}
	}
	return fragment{
		data:     data,
		handler:  handlerRef{File: file, Symbol: symbol},
		commands: commands,
	}, nil
}

// writeMergedConfig merges the per-task fragments into the group
// configuration. Build commands are concatenated across tasks (no
// deduplication), unknown fields pass through untouched and the entry point
// is rewritten to the generated dispatch glue.
func writeMergedConfig(group *fusion.FusionGroup, buildDir string, fragments map[string]fragment) error {
	merged := map[string]any{}
	commands := []string{"go mod tidy"}
	for _, task := range group.Tasks {
		frag := fragments[task.Name]
		commands = append(commands, frag.commands...)
		if err := mergo.Merge(&merged, frag.data, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge configuration of task %q: %w", task.Name, err)
		}
	}

	spec := ensureMap(merged, "spec")
	build := ensureMap(spec, "build")
	build["commands"] = commands
	spec["handler"] = glueFileBase + ":main"
	spec["description"] = fmt.Sprintf("Fusion group of tasks %s", group)

	data, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode merged configuration: %w", err)
	}
	return os.WriteFile(filepath.Join(buildDir, ConfigFileName), data, 0o644)
}

func ensureMap(parent map[string]any, key string) map[string]any {
	if m, ok := parent[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	parent[key] = m
	return m
}

// lookup walks nested maps, returning nil when any level is absent.
func lookup(data map[string]any, keys ...string) any {
	var current any = data
	for _, key := range keys {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}
