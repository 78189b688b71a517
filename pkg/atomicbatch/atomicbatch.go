// Package atomicbatch runs a fan-out command across projects with an
// automatic rollback: it snapshots the workspace first, runs the
// command sequentially so a failure stops before touching later
// projects, and restores the snapshot if any project failed.
package atomicbatch

import (
	"os"
	"path/filepath"

	"github.com/metaworkspace/meta/pkg/fanout"
	"github.com/metaworkspace/meta/pkg/logger"
	"github.com/metaworkspace/meta/pkg/manifest"
	"github.com/metaworkspace/meta/pkg/snapshot"
)

var log = logger.New("meta:atomicbatch")

// Result reports the outcome of an atomic batch run.
type Result struct {
	Results      []fanout.Result
	HasFailure   bool
	RolledBack   bool
	Rollback     *snapshot.RestoreResult
	SnapshotName string
}

// Execute captures a snapshot named snapshotName of projects, then runs
// command across them sequentially. If any project's command fails, the
// snapshot is restored with force=true and RolledBack is set. out
// receives the human-readable fan-out output; pass nil for os.Stdout.
func Execute(command, snapshotName, workspaceRoot string, projects []manifest.ProjectInfo, out *os.File) (Result, error) {
	snap, err := snapshot.Capture(snapshotName, workspaceRoot, projects, "atomic-batch auto-checkpoint")
	if err != nil {
		return Result{}, err
	}

	named := make([]fanout.NamedDir, 0, len(projects))
	for _, p := range projects {
		named = append(named, fanout.NamedDir{Name: p.Name, Dir: filepath.Join(workspaceRoot, p.Path)})
	}

	// Atomic batches always run sequentially: parallel execution would let
	// later projects run before an earlier failure is even observed,
	// defeating the rollback guarantee.
	plan, names := fanout.PlanForCommand(command, named, false)
	results, allSucceeded := fanout.RunPlan(plan, names, fanout.Options{Out: out, StopOnFailure: true})
	hasFailure := !allSucceeded

	result := Result{Results: results, HasFailure: hasFailure, SnapshotName: snapshotName}
	if !hasFailure {
		return result, nil
	}

	log.Printf("rolling back snapshot %q after failure", snapshotName)
	restore := snapshot.Restore(workspaceRoot, snap, true)
	result.RolledBack = true
	result.Rollback = &restore
	return result, nil
}
