package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name     string
		opts     ErrorOptions
		contains []string
		excludes []string
	}{
		{
			name: "context and problem",
			opts: ErrorOptions{Context: "unknown resource", Problem: "taks"},
			contains: []string{"❌ UNKNOWN RESOURCE: taks"},
		},
		{
			name: "details",
			opts: ErrorOptions{
				Context: "rejected",
				Problem: "422 Unprocessable Entity",
				Details: []string{"title: required field", "due: must be a date"},
			},
			contains: []string{"   - title: required field", "   - due: must be a date"},
		},
		{
			name:     "suggestions",
			opts:     ErrorOptions{Problem: "unknown resource", Suggestions: []string{"tasks", "tags"}},
			contains: []string{"Did you mean: tasks, tags?"},
		},
		{
			name:     "help commands",
			opts:     ErrorOptions{Problem: "boom", HelpCommands: []string{"See all resources: apy schemas"}},
			contains: []string{"→ See all resources: apy schemas"},
		},
		{
			name:     "warning",
			opts:     ErrorOptions{Level: ErrorLevelWarning, Problem: "careful"},
			contains: []string{"⚠️ careful"},
			excludes: []string{"❌"},
		},
		{
			name:     "info",
			opts:     ErrorOptions{Level: ErrorLevelInfo, Problem: "fyi"},
			contains: []string{"ℹ️ fyi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.NoColor = true
			out := FormatError(tt.opts)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	WriteError(&buf, ErrorOptions{Problem: "boom", NoColor: true})
	assert.Equal(t, "❌ boom\n", buf.String())
}

func TestSuccess(t *testing.T) {
	assert.Equal(t, "✓ saved", FormatSuccess("saved", true))

	var buf bytes.Buffer
	WriteSuccess(&buf, "saved", true)
	assert.Equal(t, "✓ saved\n", buf.String())
}

func TestWarningAndInfo(t *testing.T) {
	assert.Equal(t, "⚠️ stale\n", Warning("stale", true))
	assert.Equal(t, "ℹ️ note\n", Info("note", true))
}
