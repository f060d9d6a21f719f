package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brixel-ai/brixel-client/pkg/api"
)

func TestSanitizeID(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{in: "Research Agent", want: "research-agent"},
		{in: "writer", want: "writer"},
		{in: "Data/Team#1", want: "datateam1"},
		{in: "--trimmed--", want: "trimmed"},
		{in: "dots.and_underscores", want: "dots.and_underscores"},
		{in: "", want: ""},
	} {
		assert.Equal(t, api.AgentID(tc.want),
			api.SanitizeID(api.AgentID(tc.in)), "input %q", tc.in)
	}
}

func TestNewPlanID(t *testing.T) {
	first := api.NewPlanID()
	second := api.NewPlanID()
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
