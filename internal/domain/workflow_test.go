package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCron(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "every hour", expr: "0 * * * *"},
		{name: "daily at midnight", expr: "0 0 * * *"},
		{name: "every five minutes", expr: "*/5 * * * *"},
		{name: "weekday mornings", expr: "30 9 * * 1-5"},
		{name: "empty", expr: "", wantErr: true},
		{name: "whitespace only", expr: "   ", wantErr: true},
		{name: "four fields", expr: "* * * *", wantErr: true},
		{name: "six fields", expr: "0 0 * * * *", wantErr: true},
		{name: "out of range minute", expr: "61 * * * *", wantErr: true},
		{name: "garbage", expr: "not a cron", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCron(tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				var valErr *ValidationError
				assert.ErrorAs(t, err, &valErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCreateWorkflowRequest_Validate(t *testing.T) {
	valid := CreateWorkflowRequest{
		Name:        "nightly-etl",
		Source:      EndpointSpec{Type: "table"},
		Destination: EndpointSpec{Type: "table"},
	}

	tests := []struct {
		name    string
		mutate  func(*CreateWorkflowRequest)
		wantErr string
	}{
		{
			name:   "valid minimal",
			mutate: func(_ *CreateWorkflowRequest) {},
		},
		{
			name: "valid with schedule and config",
			mutate: func(r *CreateWorkflowRequest) {
				r.ScheduleCron = strPtr("0 2 * * *")
				r.Source = EndpointSpec{Type: "file", Config: json.RawMessage(`{"path":"in.csv","table":"raw"}`)}
				r.ConcurrencyLimit = 3
			},
		},
		{
			name:    "missing name",
			mutate:  func(r *CreateWorkflowRequest) { r.Name = "  " },
			wantErr: "name is required",
		},
		{
			name:    "missing source type",
			mutate:  func(r *CreateWorkflowRequest) { r.Source.Type = "" },
			wantErr: "source type is required",
		},
		{
			name:    "missing destination type",
			mutate:  func(r *CreateWorkflowRequest) { r.Destination.Type = "" },
			wantErr: "destination type is required",
		},
		{
			name:    "bad schedule",
			mutate:  func(r *CreateWorkflowRequest) { r.ScheduleCron = strPtr("* * * *") },
			wantErr: "invalid cron schedule",
		},
		{
			name:    "negative concurrency",
			mutate:  func(r *CreateWorkflowRequest) { r.ConcurrencyLimit = -1 },
			wantErr: "concurrency limit must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestUpdateWorkflowRequest_Validate(t *testing.T) {
	assert.NoError(t, (&UpdateWorkflowRequest{}).Validate())
	assert.NoError(t, (&UpdateWorkflowRequest{ScheduleCron: strPtr("0 * * * *")}).Validate())
	// Empty string clears the schedule rather than failing validation.
	assert.NoError(t, (&UpdateWorkflowRequest{ScheduleCron: strPtr("")}).Validate())
	assert.Error(t, (&UpdateWorkflowRequest{ScheduleCron: strPtr("bogus")}).Validate())
}

func TestCreateWorkflowStepRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateWorkflowStepRequest
		wantErr string
	}{
		{
			name: "valid with sql",
			req:  CreateWorkflowStepRequest{Name: "clean", SQL: strPtr("DELETE FROM raw WHERE id IS NULL")},
		},
		{
			name: "valid with template",
			req:  CreateWorkflowStepRequest{Name: "agg", TemplateID: strPtr("tpl-1"), RetryCount: 3},
		},
		{
			name:    "missing name",
			req:     CreateWorkflowStepRequest{SQL: strPtr("SELECT 1")},
			wantErr: "step name is required",
		},
		{
			name:    "neither sql nor template",
			req:     CreateWorkflowStepRequest{Name: "empty"},
			wantErr: "exactly one of sql or template_id",
		},
		{
			name:    "both sql and template",
			req:     CreateWorkflowStepRequest{Name: "both", SQL: strPtr("SELECT 1"), TemplateID: strPtr("tpl-1")},
			wantErr: "exactly one of sql or template_id",
		},
		{
			name:    "blank sql counts as absent",
			req:     CreateWorkflowStepRequest{Name: "blank", SQL: strPtr("   ")},
			wantErr: "exactly one of sql or template_id",
		},
		{
			name:    "retry count too high",
			req:     CreateWorkflowStepRequest{Name: "retry", SQL: strPtr("SELECT 1"), RetryCount: 11},
			wantErr: "retry count must be between 0 and 10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func strPtr(s string) *string { return &s }
