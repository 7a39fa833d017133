package workflow

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataforge/internal/domain"
)

func step(id, name string, deps ...string) domain.WorkflowStep {
	return domain.WorkflowStep{ID: id, Name: name, DependsOn: deps}
}

func sortedLevels(levels [][]string) [][]string {
	for _, l := range levels {
		sort.Strings(l)
	}
	return levels
}

func TestResolveExecutionOrder(t *testing.T) {
	tests := []struct {
		name    string
		steps   []domain.WorkflowStep
		want    [][]string
		wantErr string
	}{
		{
			name:  "empty",
			steps: nil,
			want:  nil,
		},
		{
			name:  "single step",
			steps: []domain.WorkflowStep{step("s1", "extract")},
			want:  [][]string{{"s1"}},
		},
		{
			name: "linear chain",
			steps: []domain.WorkflowStep{
				step("s1", "extract"),
				step("s2", "transform", "extract"),
				step("s3", "load", "transform"),
			},
			want: [][]string{{"s1"}, {"s2"}, {"s3"}},
		},
		{
			name: "diamond runs middle in parallel",
			steps: []domain.WorkflowStep{
				step("s1", "extract"),
				step("s2", "clean", "extract"),
				step("s3", "enrich", "extract"),
				step("s4", "merge", "clean", "enrich"),
			},
			want: [][]string{{"s1"}, {"s2", "s3"}, {"s4"}},
		},
		{
			name: "independent steps share a level",
			steps: []domain.WorkflowStep{
				step("s1", "a"),
				step("s2", "b"),
				step("s3", "c"),
			},
			want: [][]string{{"s1", "s2", "s3"}},
		},
		{
			name: "unknown dependency",
			steps: []domain.WorkflowStep{
				step("s1", "load", "missing"),
			},
			wantErr: "unknown dependency: missing",
		},
		{
			name: "self dependency",
			steps: []domain.WorkflowStep{
				step("s1", "loop", "loop"),
			},
			wantErr: "self dependency: loop",
		},
		{
			name: "two step cycle",
			steps: []domain.WorkflowStep{
				step("s1", "a", "b"),
				step("s2", "b", "a"),
			},
			wantErr: "cycle detected",
		},
		{
			name: "cycle behind a valid prefix",
			steps: []domain.WorkflowStep{
				step("s1", "root"),
				step("s2", "a", "root", "c"),
				step("s3", "b", "a"),
				step("s4", "c", "b"),
			},
			wantErr: "cycle detected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveExecutionOrder(tt.steps)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sortedLevels(got))
		})
	}
}
