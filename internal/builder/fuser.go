// Package builder fuses the tasks of a fusion group into one self-contained
// deployable artifact: copied task trees, a merged runtime configuration and
// generated dispatch glue.
package builder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/fusiond/internal/fusion"
	"github.com/danmuck/fusiond/internal/observability"
)

// ConfigFileName is the per-task runtime configuration fragment and the
// merged group configuration written into the artifact.
const ConfigFileName = "function.yaml"

// Fuser builds fusion group artifacts beneath a root build directory.
type Fuser struct {
	root string
}

func NewFuser(root string) *Fuser {
	return &Fuser{root: root}
}

// Fuse builds the artifact for a group and returns a copy of the group with
// BuildDir set. On failure the returned error is a fusion.BuildError and the
// group is left without a build dir, so the reconciler will not deploy it.
func (f *Fuser) Fuse(group *fusion.FusionGroup) (*fusion.FusionGroup, error) {
	start := time.Now()
	built, err := f.fuse(group)
	observability.RecordBuild(err == nil, time.Since(start))
	if err != nil {
		log.Error().Str("group", group.Name).Err(err).Msg("fusion build failed")
		return nil, &fusion.BuildError{Group: group.Name, Err: err}
	}
	log.Info().
		Str("group", built.Name).
		Str("build_dir", built.BuildDir).
		Msg("fused tasks")
	return built, nil
}

func (f *Fuser) fuse(group *fusion.FusionGroup) (*fusion.FusionGroup, error) {
	if len(group.Tasks) == 0 {
		return nil, errors.New("fusion group has no tasks")
	}
	buildDir := filepath.Join(f.root, group.Name)
	if err := os.RemoveAll(buildDir); err != nil {
		return nil, fmt.Errorf("clear build dir: %w", err)
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return nil, fmt.Errorf("create build dir: %w", err)
	}
	log.Debug().
		Str("group", group.String()).
		Str("build_dir", buildDir).
		Msg("starting build")

	out := group.Clone()
	out.BuildDir = ""
	for i := range out.Tasks {
		dst := filepath.Join(buildDir, out.Tasks[i].Name)
		if err := copyTree(out.Tasks[i].DirPath, dst); err != nil {
			return nil, fmt.Errorf("copy task %q: %w", out.Tasks[i].Name, err)
		}
		out.Tasks[i].DirPath = dst
	}

	fragments, err := readFragments(out.Tasks)
	if err != nil {
		return nil, err
	}
	if err := writeMergedConfig(out, buildDir, fragments); err != nil {
		return nil, err
	}
	if err := writeDispatchGlue(out, buildDir, fragments); err != nil {
		return nil, err
	}

	out.BuildDir = buildDir
	return out, nil
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("task source %q is not a directory", src)
	}
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}
