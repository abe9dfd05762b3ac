package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"
)

// StaticStrategy replays a fixed, timestamped schedule: a mapping from
// seconds-since-start milestones to task-name groupings. After the last
// milestone the loop terminates; there is nothing left to schedule.
type StaticStrategy struct {
	milestones []time.Duration
	groups     map[time.Duration][][]string
}

// LoadStaticStrategy reads a schedule of the form
//
//	{"60": [["taskA","taskB"],["taskC"]], "120": [["taskA"],["taskB","taskC"]]}
//
// from a JSON file. Keys must be non-negative integer second offsets; an
// offset of 0 is applied immediately when the scheduler starts.
func LoadStaticStrategy(path string) (*StaticStrategy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule %s: %w", path, err)
	}
	var schedule map[string][][]string
	if err := json.Unmarshal(raw, &schedule); err != nil {
		return nil, fmt.Errorf("parse schedule %s: %w", path, err)
	}
	return NewStaticStrategy(schedule)
}

// NewStaticStrategy builds a strategy from an already-decoded schedule.
func NewStaticStrategy(schedule map[string][][]string) (*StaticStrategy, error) {
	s := &StaticStrategy{groups: make(map[time.Duration][][]string, len(schedule))}
	for key, groups := range schedule {
		seconds, err := strconv.Atoi(key)
		if err != nil || seconds < 0 {
			return nil, fmt.Errorf("schedule offset %q is not a non-negative integer", key)
		}
		offset := time.Duration(seconds) * time.Second
		s.milestones = append(s.milestones, offset)
		s.groups[offset] = groups
	}
	sort.Slice(s.milestones, func(i, j int) bool { return s.milestones[i] < s.milestones[j] })
	return s, nil
}

// Produce returns the grouping pinned to the exact milestone, if any.
func (s *StaticStrategy) Produce(elapsed time.Duration) ([][]string, bool) {
	groups, ok := s.groups[elapsed]
	return groups, ok
}

// NextInterval returns the gap to the next strictly larger milestone. When
// no larger milestone exists the schedule is exhausted.
func (s *StaticStrategy) NextInterval(elapsed time.Duration) (time.Duration, bool) {
	for _, milestone := range s.milestones {
		if milestone > elapsed {
			return milestone - elapsed, true
		}
	}
	return 0, false
}
