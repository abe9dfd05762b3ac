package fusion

import (
	"sort"
	"strings"
)

// Task is a single unit of deployable function code, identified by name.
type Task struct {
	Name    string `json:"name"`
	DirPath string `json:"dir_path"`
}

// SameAs compares tasks by name only. Two tasks with the same name are the
// same task even when their source paths differ (e.g. after a build relocates
// the tree).
func (t Task) SameAs(other Task) bool {
	return t.Name == other.Name
}

func (t Task) String() string {
	return t.Name
}

// FusionGroup is a set of tasks bundled into one deployable artifact.
//
// Name is derived from the member task names in insertion order and is not
// stable across membership changes. BuildDir is set only after a successful
// build and cleared whenever membership changes.
type FusionGroup struct {
	Name     string `json:"name"`
	BuildDir string `json:"build_dir"`
	Tasks    []Task `json:"tasks"`
}

// NewGroup builds a group over the given tasks and derives its name.
func NewGroup(tasks ...Task) *FusionGroup {
	g := &FusionGroup{Tasks: append([]Task(nil), tasks...)}
	g.GenName()
	return g
}

// GenName derives the group name by concatenating member task names in order.
func (g *FusionGroup) GenName() {
	var b strings.Builder
	for _, task := range g.Tasks {
		b.WriteString(task.Name)
	}
	g.Name = b.String()
}

// EqualTasks reports set-equality of member tasks, independent of name and
// build dir. This is the identity the reconciler diff relies on.
func (g *FusionGroup) EqualTasks(other *FusionGroup) bool {
	if other == nil {
		return false
	}
	return g.TaskSetKey() == other.TaskSetKey()
}

// TaskSetKey returns a canonical key for the group's task set: sorted member
// names joined with "|". Groups with identical membership share a key.
func (g *FusionGroup) TaskSetKey() string {
	names := make([]string, 0, len(g.Tasks))
	for _, task := range g.Tasks {
		names = append(names, task.Name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

// HasTask reports whether the group contains a task with the given name.
func (g *FusionGroup) HasTask(name string) bool {
	_, ok := g.Task(name)
	return ok
}

// Task returns the member task with the given name.
func (g *FusionGroup) Task(name string) (Task, bool) {
	for _, task := range g.Tasks {
		if task.Name == name {
			return task, true
		}
	}
	return Task{}, false
}

// Clone returns an independent copy of the group.
func (g *FusionGroup) Clone() *FusionGroup {
	return &FusionGroup{
		Name:     g.Name,
		BuildDir: g.BuildDir,
		Tasks:    append([]Task(nil), g.Tasks...),
	}
}

// String lists the member task names, comma separated, for logs.
func (g *FusionGroup) String() string {
	names := make([]string, 0, len(g.Tasks))
	for _, task := range g.Tasks {
		names = append(names, task.Name)
	}
	return strings.Join(names, ", ")
}

// Topology is the complete assignment of tasks to fusion groups at a point in
// time. Group task sets are pairwise disjoint.
type Topology []*FusionGroup

// Tasks flattens the topology into all member tasks.
func (tp Topology) Tasks() []Task {
	var tasks []Task
	for _, group := range tp {
		tasks = append(tasks, group.Tasks...)
	}
	return tasks
}

// Clone returns an independent deep copy of the topology.
func (tp Topology) Clone() Topology {
	out := make(Topology, 0, len(tp))
	for _, group := range tp {
		out = append(out, group.Clone())
	}
	return out
}

func (tp Topology) String() string {
	parts := make([]string, 0, len(tp))
	for _, group := range tp {
		parts = append(parts, "["+group.String()+"]")
	}
	return strings.Join(parts, " ")
}
