package reconciler

import (
	"testing"

	"github.com/danmuck/fusiond/internal/fusion"
	"github.com/danmuck/fusiond/internal/testutil/testlog"
)

func TestReplaceDeploysAndDeletesOnlyTheDifference(t *testing.T) {
	testlog.Start(t)
	rec, gateway, builder := newTestReconciler()
	onboard(t, rec, "taskA", "taskB", "taskC")

	gateway.calls = nil
	builder.calls = nil
	rec.ReplaceNames([][]string{{"taskA", "taskB"}, {"taskC"}})

	want := []string{"deploy:taskAtaskB", "delete:taskA", "delete:taskB"}
	if len(gateway.calls) != len(want) {
		t.Fatalf("unexpected gateway calls: %v", gateway.calls)
	}
	for i, call := range want {
		if gateway.calls[i] != call {
			t.Fatalf("call %d: want %q, got %q", i, call, gateway.calls[i])
		}
	}
	// The taskC grouping is unchanged: never rebuilt, never redeployed.
	for _, built := range builder.calls {
		if built == "taskC" {
			t.Fatalf("retained group was rebuilt: %v", builder.calls)
		}
	}

	group, err := rec.Lookup("taskC")
	if err != nil {
		t.Fatalf("lookup retained task: %v", err)
	}
	if group.BuildDir != "build/taskC" {
		t.Fatalf("retained group lost its build dir: %q", group.BuildDir)
	}
}

func TestReplaceTwiceConvergesOnSecondTopology(t *testing.T) {
	testlog.Start(t)
	rec, gateway, _ := newTestReconciler()
	onboard(t, rec, "taskA", "taskB", "taskC")

	rec.ReplaceNames([][]string{{"taskA", "taskB"}, {"taskC"}})
	gateway.calls = nil
	rec.ReplaceNames([][]string{{"taskA"}, {"taskB", "taskC"}})

	want := []string{"deploy:taskA", "deploy:taskBtaskC", "delete:taskAtaskB", "delete:taskC"}
	if len(gateway.calls) != len(want) {
		t.Fatalf("unexpected gateway calls: %v", gateway.calls)
	}
	for i, call := range want {
		if gateway.calls[i] != call {
			t.Fatalf("call %d: want %q, got %q", i, call, gateway.calls[i])
		}
	}
	if len(rec.Snapshot()) != 2 {
		t.Fatalf("unexpected topology size: %v", rec.Snapshot())
	}
}

func TestReplaceEmptyTopologyIsANoOp(t *testing.T) {
	testlog.Start(t)
	rec, gateway, _ := newTestReconciler()
	onboard(t, rec, "taskA")

	gateway.calls = nil
	rec.ReplaceNames(nil)
	rec.ReplaceNames([][]string{})
	rec.Replace(nil)

	if len(gateway.calls) != 0 {
		t.Fatalf("empty desired topology must not touch the gateway: %v", gateway.calls)
	}
	if len(rec.Snapshot()) != 1 {
		t.Fatalf("empty desired topology must not wipe deployments")
	}
}

func TestReplaceDropsUnregisteredTaskNames(t *testing.T) {
	testlog.Start(t)
	rec, gateway, _ := newTestReconciler()
	onboard(t, rec, "taskA")

	gateway.calls = nil
	// "ghost" was never onboarded: the whole grouping collapses to nothing
	// and the guard treats the update as a no-op.
	rec.ReplaceNames([][]string{{"ghost"}})

	if len(gateway.calls) != 0 {
		t.Fatalf("unexpected gateway calls: %v", gateway.calls)
	}
	if _, err := rec.Lookup("taskA"); err != nil {
		t.Fatalf("existing mapping lost: %v", err)
	}
}

func TestReplaceContinuesPastPerGroupFailures(t *testing.T) {
	testlog.Start(t)
	rec, gateway, _ := newTestReconciler()
	onboard(t, rec, "taskA", "taskB", "taskC")
	gateway.failDeploy["taskAtaskB"] = true

	gateway.calls = nil
	rec.ReplaceNames([][]string{{"taskA", "taskB"}, {"taskC"}})

	// The failed group is skipped; the deletes still run and the topology
	// reflects exactly the operations that succeeded.
	want := []string{"deploy:taskAtaskB", "delete:taskA", "delete:taskB"}
	for i, call := range want {
		if gateway.calls[i] != call {
			t.Fatalf("call %d: want %q, got %q", i, call, gateway.calls[i])
		}
	}
	topology := rec.Snapshot()
	if len(topology) != 1 || topology[0].Name != "taskC" {
		t.Fatalf("topology must hold only the converged groups: %v", topology)
	}
}

func TestReplaceKeepsGroupWhenDeleteFails(t *testing.T) {
	testlog.Start(t)
	rec, gateway, _ := newTestReconciler()
	onboard(t, rec, "taskA", "taskB")
	gateway.failDelete["taskA"] = true

	rec.ReplaceNames([][]string{{"taskB"}})

	// taskA is still deployed on the platform, so it stays tracked and the
	// next reconfiguration will retry the delete.
	if _, err := rec.Lookup("taskA"); err != nil {
		t.Fatalf("group with failed delete dropped from topology: %v", err)
	}
}

func TestReplaceTypedTopologyMatchesNameResolution(t *testing.T) {
	testlog.Start(t)
	rec, _, _ := newTestReconciler()
	onboard(t, rec, "taskA", "taskB")

	taskA, _ := rec.Lookup("taskA")
	taskB, _ := rec.Lookup("taskB")
	desired := fusion.Topology{fusion.NewGroup(taskA.Tasks[0], taskB.Tasks[0])}
	rec.Replace(desired)
	typed := rec.Snapshot()

	rec2, _, _ := newTestReconciler()
	onboard(t, rec2, "taskA", "taskB")
	rec2.ReplaceNames([][]string{{"taskA", "taskB"}})
	named := rec2.Snapshot()

	if len(typed) != 1 || len(named) != 1 {
		t.Fatalf("unexpected topologies: %v vs %v", typed, named)
	}
	if typed[0].TaskSetKey() != named[0].TaskSetKey() {
		t.Fatalf("typed and name-resolved topologies diverge: %q vs %q",
			typed[0].TaskSetKey(), named[0].TaskSetKey())
	}
}

func TestReplaceReusesPrebuiltGroups(t *testing.T) {
	testlog.Start(t)
	rec, _, builder := newTestReconciler()
	onboard(t, rec, "taskA", "taskB")

	rec.ReplaceNames([][]string{{"taskA", "taskB"}})
	builds := len(builder.calls)

	// Replacing with the identical grouping must not rebuild anything.
	rec.ReplaceNames([][]string{{"taskB", "taskA"}})
	if len(builder.calls) != builds {
		t.Fatalf("identical grouping was rebuilt: %v", builder.calls)
	}
}
