package reconciler

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/fusiond/internal/fusion"
)

// Replace converges the platform onto the desired topology. Groups whose
// task set already exists are retained as-is; the rest are built and
// deployed, and groups absent from the desired topology are deleted.
// Per-group failures are logged and skipped: a best-effort partial
// convergence is preferable to aborting an entire reconfiguration over one
// bad group. The topology afterward reflects the operations that succeeded.
func (r *Reconciler) Replace(desired fusion.Topology) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaceLocked(r.rebindLocked(desired))
}

// ReplaceNames is Replace over raw task-name groupings, as produced by
// reconfiguration strategies.
func (r *Reconciler) ReplaceNames(desired [][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaceLocked(r.resolveLocked(desired))
}

// resolveLocked rebinds task-name groupings to the Task values already
// registered in the topology. Names that match no registered task are
// dropped, as are groups left empty by that filtering.
func (r *Reconciler) resolveLocked(raw [][]string) fusion.Topology {
	known := make(map[string]fusion.Task)
	for _, task := range r.topology.Tasks() {
		known[task.Name] = task
	}
	var desired fusion.Topology
	for _, names := range raw {
		var tasks []fusion.Task
		for _, name := range names {
			task, ok := known[name]
			if !ok {
				log.Warn().Str("task", name).Msg("desired topology names an unregistered task, ignoring it")
				continue
			}
			tasks = append(tasks, task)
		}
		if len(tasks) == 0 {
			continue
		}
		desired = append(desired, fusion.NewGroup(tasks...))
	}
	return r.rebindLocked(desired)
}

// rebindLocked replaces desired groups that reuse the exact task set of an
// existing group with the existing group value, preserving its build dir so
// unchanged groupings are never rebuilt or redeployed.
func (r *Reconciler) rebindLocked(desired fusion.Topology) fusion.Topology {
	current := make(map[string]*fusion.FusionGroup, len(r.topology))
	for _, group := range r.topology {
		current[group.TaskSetKey()] = group
	}
	out := make(fusion.Topology, 0, len(desired))
	for _, group := range desired {
		if existing, ok := current[group.TaskSetKey()]; ok {
			out = append(out, existing.Clone())
			continue
		}
		out = append(out, group.Clone())
	}
	return out
}

func (r *Reconciler) replaceLocked(desired fusion.Topology) {
	if len(desired) == 0 {
		// Deliberate guard: an empty desired topology would wipe every
		// deployment. Treat it as a no-op instead of silent data loss.
		log.Info().Msg("desired topology contains no deployable groups, skipping replace")
		return
	}

	currentByKey := make(map[string]*fusion.FusionGroup, len(r.topology))
	currentKeys := mapset.NewSet[string]()
	for _, group := range r.topology {
		currentByKey[group.TaskSetKey()] = group
		currentKeys.Add(group.TaskSetKey())
	}
	desiredByKey := make(map[string]*fusion.FusionGroup, len(desired))
	desiredKeys := mapset.NewSet[string]()
	for _, group := range desired {
		desiredByKey[group.TaskSetKey()] = group
		desiredKeys.Add(group.TaskSetKey())
	}

	retained := desiredKeys.Intersect(currentKeys)
	toDeploy := desiredKeys.Difference(currentKeys)
	toDelete := currentKeys.Difference(desiredKeys)
	log.Info().
		Int("retained", retained.Cardinality()).
		Int("to_deploy", toDeploy.Cardinality()).
		Int("to_delete", toDelete.Cardinality()).
		Msg("replacing fusion topology")

	next := make(fusion.Topology, 0, len(desired))
	for _, key := range sortedKeys(retained) {
		next = append(next, currentByKey[key])
	}
	for _, key := range sortedKeys(toDeploy) {
		group := desiredByKey[key]
		if group.BuildDir == "" {
			built, err := r.builder.Fuse(group)
			if err != nil {
				log.Error().Str("group", group.Name).Err(err).Msg("skipping group, build failed")
				continue
			}
			group = built
		}
		if _, err := r.gateway.Deploy(group.Name, group.BuildDir); err != nil {
			log.Error().Str("group", group.Name).Err(err).Msg("skipping group, deploy failed")
			continue
		}
		next = append(next, group)
	}
	for _, key := range sortedKeys(toDelete) {
		group := currentByKey[key]
		if _, err := r.gateway.Delete(group.Name); err != nil {
			// Still deployed on the platform; keep tracking it so the next
			// reconfiguration retries the delete.
			log.Error().Str("group", group.Name).Err(err).Msg("delete failed, keeping group in topology")
			next = append(next, group)
		}
	}

	r.topology = next
	log.Info().Str("topology", next.String()).Msg("fusion topology replaced")
}

func sortedKeys(set mapset.Set[string]) []string {
	keys := set.ToSlice()
	sort.Strings(keys)
	return keys
}
