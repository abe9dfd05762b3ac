// Package reconciler owns the authoritative fusion topology and converges
// the deployment platform toward it. All mutating operations serialize on a
// single mutex held for the full operation, including the builds and gateway
// calls it triggers, so concurrent API calls and scheduler reconfigurations
// never diff against a stale topology.
package reconciler

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/fusiond/internal/fusion"
	"github.com/danmuck/fusiond/internal/observability"
)

// Gateway is the deployment platform boundary consumed by the reconciler.
type Gateway interface {
	Deploy(groupName, artifactPath string) (string, error)
	Delete(groupName string) (string, error)
	Describe(groupName string) (string, error)
	Invoke(groupName, taskName, serverAddr string, body []byte) (string, error)
}

// Builder fuses a group into a deployable artifact.
type Builder interface {
	Fuse(group *fusion.FusionGroup) (*fusion.FusionGroup, error)
}

// Reconciler holds the desired-vs-deployed mapping of tasks to fusion
// groups. Construct one instance and pass it to collaborators; there is no
// ambient global state.
type Reconciler struct {
	mu         sync.Mutex
	gateway    Gateway
	builder    Builder
	serverAddr string
	topology   fusion.Topology
}

func New(gateway Gateway, builder Builder, serverAddr string) *Reconciler {
	return &Reconciler{
		gateway:    gateway,
		builder:    builder,
		serverAddr: serverAddr,
	}
}

// Onboard maps a new task into its own singleton group, builds it and
// deploys it. On any failure the topology is left untouched.
func (r *Reconciler) Onboard(task fusion.Task) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.groupOfLocked(task.Name); existing != nil {
		observability.RecordReconcileOp("onboard", false)
		return "", fmt.Errorf("task %q is already mapped to fusion group %q", task.Name, existing.Name)
	}

	log.Debug().Str("task", task.Name).Msg("onboarding task")
	built, err := r.builder.Fuse(fusion.NewGroup(task))
	if err != nil {
		observability.RecordReconcileOp("onboard", false)
		return "", err
	}
	out, err := r.gateway.Deploy(built.Name, built.BuildDir)
	if err != nil {
		observability.RecordReconcileOp("onboard", false)
		return out, err
	}
	r.topology = append(r.topology, built)
	observability.RecordReconcileOp("onboard", true)
	log.Info().Str("task", task.Name).Str("group", built.Name).Msg("task onboarded")
	return out, nil
}

// Remove deletes a task from the topology and the platform. When the task
// shares a group with others, a replacement group holding the remaining
// tasks is built and deployed before the old group is deleted, so the
// remaining tasks are never left undeployed in between.
func (r *Reconciler) Remove(taskName string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.groupOfLocked(taskName)
	if old == nil {
		observability.RecordReconcileOp("remove", false)
		return "", fmt.Errorf("cannot remove task %q: %w", taskName, fusion.ErrTaskNotFound)
	}
	log.Debug().Str("task", taskName).Str("group", old.Name).Msg("removing task")

	if len(old.Tasks) > 1 {
		remainder := old.Clone()
		kept := remainder.Tasks[:0]
		for _, task := range remainder.Tasks {
			if task.Name != taskName {
				kept = append(kept, task)
			}
		}
		remainder.Tasks = kept
		remainder.GenName()
		remainder.BuildDir = ""

		built, err := r.builder.Fuse(remainder)
		if err != nil {
			observability.RecordReconcileOp("remove", false)
			return "", err
		}
		if _, err := r.gateway.Deploy(built.Name, built.BuildDir); err != nil {
			observability.RecordReconcileOp("remove", false)
			return "", err
		}
		r.topology = append(r.topology, built)
	}

	out, err := r.gateway.Delete(old.Name)
	if err != nil && len(old.Tasks) == 1 {
		// The group is still deployed and no replacement shadows it; keep
		// the mapping so a later retry can find it.
		observability.RecordReconcileOp("remove", false)
		return out, err
	}
	r.dropGroupLocked(old)
	observability.RecordReconcileOp("remove", err == nil)
	if err == nil {
		log.Info().Str("task", taskName).Str("group", old.Name).Msg("task removed")
	}
	return out, err
}

// Lookup returns a copy of the group currently containing the task.
func (r *Reconciler) Lookup(taskName string) (*fusion.FusionGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group := r.groupOfLocked(taskName)
	if group == nil {
		return nil, fmt.Errorf("lookup of task %q: %w", taskName, fusion.ErrTaskNotFound)
	}
	return group.Clone(), nil
}

// Snapshot returns an independent copy of the current topology.
func (r *Reconciler) Snapshot() fusion.Topology {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.topology.Clone()
}

// Describe proxies a platform status request for the API front end.
func (r *Reconciler) Describe(groupName string) (string, error) {
	return r.gateway.Describe(groupName)
}

// Invoke resolves the task's current group and invokes it through the
// gateway with the routing headers set.
func (r *Reconciler) Invoke(taskName string, body []byte) (string, error) {
	r.mu.Lock()
	group := r.groupOfLocked(taskName)
	r.mu.Unlock()
	if group == nil {
		return "", fmt.Errorf("cannot invoke task %q: %w", taskName, fusion.ErrTaskNotFound)
	}
	return r.gateway.Invoke(group.Name, taskName, r.serverAddr, body)
}

func (r *Reconciler) groupOfLocked(taskName string) *fusion.FusionGroup {
	for _, group := range r.topology {
		if group.HasTask(taskName) {
			return group
		}
	}
	return nil
}

func (r *Reconciler) dropGroupLocked(target *fusion.FusionGroup) {
	kept := r.topology[:0]
	for _, group := range r.topology {
		if group != target {
			kept = append(kept, group)
		}
	}
	r.topology = kept
}
