// Package workflow implements workflow orchestration: CRUD, the step DAG,
// the background run executor, and the cron scheduler.
package workflow

import "dataforge/internal/domain"

// ResolveExecutionOrder computes a topological ordering of workflow steps
// using Kahn's algorithm. Returns levels of step IDs where each level can
// execute in parallel. Fails on cycles, unknown deps, and self deps.
func ResolveExecutionOrder(steps []domain.WorkflowStep) ([][]string, error) {
	if len(steps) == 0 {
		return nil, nil
	}

	nameToID := make(map[string]string, len(steps))
	inDegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string) // dep ID → step IDs that depend on it

	for _, s := range steps {
		nameToID[s.Name] = s.ID
		inDegree[s.ID] = 0
	}

	for _, s := range steps {
		for _, dep := range s.DependsOn {
			depID, ok := nameToID[dep]
			if !ok {
				return nil, domain.ErrValidation("unknown dependency: %s", dep)
			}
			if depID == s.ID {
				return nil, domain.ErrValidation("self dependency: %s", s.Name)
			}
			dependents[depID] = append(dependents[depID], s.ID)
			inDegree[s.ID]++
		}
	}

	var levels [][]string
	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		level := make([]string, len(queue))
		copy(level, queue)
		levels = append(levels, level)
		processed += len(level)

		var next []string
		for _, id := range queue {
			for _, dep := range dependents[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		queue = next
	}

	if processed != len(steps) {
		return nil, domain.ErrValidation("cycle detected in step dependencies")
	}
	return levels, nil
}
