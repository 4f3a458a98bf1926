package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMCPStrategy(t *testing.T) {
	tests := []struct {
		name       string
		taskOption string
		configVal  string
		want       MCPStrategy
	}{
		{"default", "", "", MCPFast},
		{"task wins over config", "deep", "disabled", MCPDeep},
		{"config when task empty", "", "disabled", MCPDisabled},
		{"legacy optimized", "optimized", "", MCPFast},
		{"legacy comprehensive", "comprehensive", "", MCPDeep},
		{"unknown coerces to fast", "turbo", "deep", MCPFast},
		{"legacy in config", "", "comprehensive", MCPDeep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveMCPStrategy(tt.taskOption, tt.configVal))
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	tk, err := New("capital of France")
	require.NoError(t, err)
	assert.Equal(t, ResearchReport, tk.ReportType)
	assert.Equal(t, SourceWeb, tk.Source)
	assert.Equal(t, ToneObjective, tk.Tone)
	assert.NotEmpty(t, tk.ID)
}

func TestNew_Validation(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	_, err = New("q", WithReportType("bogus"))
	assert.Error(t, err)

	_, err = New("q", WithSource("bogus"))
	assert.Error(t, err)
}

func TestNew_Options(t *testing.T) {
	tk, err := New("q",
		WithReportType(SubtopicReport),
		WithParentQuery("parent"),
		WithSource(SourceHybrid),
		WithQueryDomains([]string{"example.com"}),
		WithPersona("agent", "role"),
	)
	require.NoError(t, err)
	assert.Equal(t, "parent", tk.ParentQuery)
	assert.Equal(t, SourceHybrid, tk.Source)
	assert.Equal(t, []string{"example.com"}, tk.QueryDomains)
	assert.Equal(t, "agent", tk.Agent)
}
