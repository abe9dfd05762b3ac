package builder

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"text/template"

	"github.com/danmuck/fusiond/internal/fusion"
)

const (
	glueFileBase   = "handler"
	artifactModule = "fusionhandler"

	runtimeModule = "github.com/danmuck/fusiond"

	// Used when the binary carries no release version (devel builds).
	runtimeFallbackVersion = "v0.1.0"
)

// handlerSource is the dispatch glue packaged into every artifact: one
// import binding per task resolving to its original handler, and a routing
// table keyed by task name.
const handlerSource = `// Code generated by fusiond. DO NOT EDIT.
package main

import (
	"github.com/danmuck/fusiond/dispatch"

{{- range .Bindings}}
	{{.Alias}} "{{$.Module}}/{{.Task}}"
{{- end}}
)

var tasks = map[string]dispatch.Handler{
{{- range .Bindings}}
	"{{.Task}}": {{.Alias}}.{{.Symbol}},
{{- end}}
}

func main() {
	if err := dispatch.Run(tasks); err != nil {
		panic(err)
	}
}
`

var glueTemplate = template.Must(template.New(glueFileBase).Parse(handlerSource))

type glueBinding struct {
	Task   string
	Alias  string
	Symbol string
}

func writeDispatchGlue(group *fusion.FusionGroup, buildDir string, fragments map[string]fragment) error {
	bindings := make([]glueBinding, 0, len(group.Tasks))
	for _, task := range group.Tasks {
		bindings = append(bindings, glueBinding{
			Task:   task.Name,
			Alias:  importAlias(task.Name),
			Symbol: fragments[task.Name].handler.Symbol,
		})
	}

	var buf bytes.Buffer
	err := glueTemplate.Execute(&buf, struct {
		Module   string
		Bindings []glueBinding
	}{Module: artifactModule, Bindings: bindings})
	if err != nil {
		return fmt.Errorf("render dispatch glue: %w", err)
	}
	if err := os.WriteFile(filepath.Join(buildDir, glueFileBase+".go"), buf.Bytes(), 0o644); err != nil {
		return err
	}

	// The seeded "go mod tidy" inside the platform build needs the dispatch
	// runtime requirement spelled out; tidy alone cannot infer a version.
	goMod := fmt.Sprintf("module %s\n\ngo 1.25\n\nrequire %s %s\n",
		artifactModule, runtimeModule, runtimeVersion())
	return os.WriteFile(filepath.Join(buildDir, "go.mod"), []byte(goMod), 0o644)
}

// runtimeVersion pins the artifact's dispatch runtime requirement to the
// version this binary was built from.
func runtimeVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return runtimeFallbackVersion
}

// importAlias maps a task name onto a valid Go identifier. Platform function
// names may carry characters (e.g. hyphens) that identifiers cannot.
func importAlias(taskName string) string {
	var b strings.Builder
	b.WriteString("task_")
	for _, r := range taskName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
