package tests

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brixel-ai/brixel-client/pkg/api"
	"github.com/brixel-ai/brixel-client/pkg/builder"
	"github.com/brixel-ai/brixel-client/pkg/client"
	"github.com/brixel-ai/brixel-client/pkg/publish"
	"github.com/brixel-ai/brixel-client/pkg/registry"
)

func newResearchRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg := registry.New()
	require.NoError(t, reg.RegisterAgent(api.AgentSpec{
		ID:          "researcher",
		Name:        "Researcher",
		Description: "Collects facts",
	}))
	require.NoError(t, reg.RegisterAgent(api.AgentSpec{
		ID:          "writer",
		Name:        "Writer",
		Description: "Summarizes facts",
	}))

	require.NoError(t, reg.Register(api.TaskSpec{
		Name:        "collect_facts",
		Description: "Returns known facts about a topic",
		AgentID:     "researcher",
		Configuration: api.TaskConfig{
			Inputs: []api.InputSpec{
				{Name: "topic", Type: "string", Required: true},
			},
		},
	}, func(args api.Args) (any, error) {
		topic := args.GetString("topic", "")
		return []any{topic + " is old", topic + " is large"}, nil
	}))

	require.NoError(t, reg.Register(api.TaskSpec{
		Name:        "summarize",
		Description: "Joins facts into a summary line",
		AgentID:     "writer",
		Configuration: api.TaskConfig{
			Inputs: []api.InputSpec{
				{Name: "lines", Type: "array", Required: true},
			},
		},
	}, func(args api.Args) (any, error) {
		lines, _ := args["lines"].([]any)
		parts := make([]string, len(lines))
		for i, line := range lines {
			parts[i], _ = line.(string)
		}
		return strings.Join(parts, "; "), nil
	}))

	return reg
}

// TestMultiSubPlanPipeline verifies that a later sub-plan sees an earlier
// sub-plan's output through its declared inputs, and that the final done
// event carries the last sub-plan's output
func TestMultiSubPlanPipeline(t *testing.T) {
	reg := newResearchRegistry(t)
	col := publish.NewCollector()
	c, err := client.New("test-key",
		client.WithRegistry(reg),
		client.WithPublisher(col),
	)
	require.NoError(t, err)

	research := builder.NewSubPlan("research").
		WithAgent("researcher", api.AgentTypeLocal).
		WithNodes(
			builder.Assign("facts", "[]"),
			builder.For("fact", "collect_facts('the ocean')",
				builder.Append("facts", "fact"),
			),
			builder.Return("facts"),
		)

	report := builder.NewSubPlan("report").
		WithAgent("writer", api.AgentTypeLocal).
		WithInput("facts", "research").
		WithNodes(
			builder.Call("summarize").
				WithInput("lines", "facts").
				WithOutput("summary").
				WithDisplay(),
			builder.Return("summary"),
		)

	plan, err := builder.NewPlan().
		WithSubPlans(research, report).
		Build()
	require.NoError(t, err)

	res, err := c.ExecutePlan(context.Background(), plan, nil)
	require.NoError(t, err)

	assert.Equal(t,
		"the ocean is old; the ocean is large", res.Output)
	assert.Equal(t, []any{
		"the ocean is old", "the ocean is large",
	}, res.Outputs["research"])

	require.Len(t, res.Displayed, 1)
	assert.Equal(t,
		"the ocean is old; the ocean is large", res.Displayed[0].Output)

	starts := col.Named(api.EventSubPlanStart)
	require.Len(t, starts, 2)
	assert.Equal(t, api.SubPlanID("research"), starts[0].PlanID)
	assert.Equal(t, api.SubPlanID("report"), starts[1].PlanID)

	done := col.Named(api.EventDone)
	require.Len(t, done, 1)
	assert.Equal(t, api.SubPlanID("report"), done[0].PlanID)
	assert.Equal(t,
		"the ocean is old; the ocean is large", done[0].Details["output"])
}

// TestPlanFilesSeeding verifies every sub-plan sees the shared files binding
func TestPlanFilesSeeding(t *testing.T) {
	reg := newResearchRegistry(t)
	c, err := client.New("test-key", client.WithRegistry(reg))
	require.NoError(t, err)

	sub := builder.NewSubPlan("files").
		WithAgent("researcher", api.AgentTypeLocal).
		WithNodes(
			builder.Return("files[1]"),
		)
	plan, err := builder.NewPlan().WithSubPlans(sub).Build()
	require.NoError(t, err)

	res, err := c.ExecutePlan(
		context.Background(), plan,
		[]any{"notes.txt", "data.csv"},
	)
	require.NoError(t, err)
	assert.Equal(t, "data.csv", res.Output)
}

// TestPlanFailureStopsPipeline verifies a failing sub-plan aborts the run
// before later sub-plans start
func TestPlanFailureStopsPipeline(t *testing.T) {
	reg := newResearchRegistry(t)
	col := publish.NewCollector()
	c, err := client.New("test-key",
		client.WithRegistry(reg),
		client.WithPublisher(col),
	)
	require.NoError(t, err)

	failing := builder.NewSubPlan("failing").
		WithAgent("researcher", api.AgentTypeLocal).
		WithNodes(
			builder.Raise("nothing to research"),
		)
	report := builder.NewSubPlan("report").
		WithAgent("writer", api.AgentTypeLocal).
		WithNodes(
			builder.Return("'never runs'"),
		)

	plan, err := builder.NewPlan().WithSubPlans(failing, report).Build()
	require.NoError(t, err)

	_, err = c.ExecutePlan(context.Background(), plan, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to research")

	starts := col.Named(api.EventSubPlanStart)
	require.Len(t, starts, 1)
	assert.Equal(t, api.SubPlanID("failing"), starts[0].PlanID)
	assert.Empty(t, col.Named(api.EventDone))
}
