package builder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brixel-ai/brixel-client/pkg/api"
	"github.com/brixel-ai/brixel-client/pkg/builder"
	"github.com/brixel-ai/brixel-client/pkg/runner"
)

func TestBuildSubPlan(t *testing.T) {
	sub, err := builder.NewSubPlan("totals").WithNodes(
		builder.Assign("total", "0"),
		builder.For("n", "range(5)",
			builder.Update("total", "+=", "n"),
		),
		builder.Return("total"),
	).Build()
	require.NoError(t, err)

	assert.Equal(t, api.SubPlanID("totals"), sub.ID)
	assert.True(t, sub.IsLocal())
	require.Len(t, sub.Nodes, 3)
	assert.Equal(t, "_assign", sub.Nodes[0].Name)
	assert.Equal(t, 0, sub.Nodes[0].Index)

	// children receive indexes in execution order
	children, err := sub.Nodes[1].Children()
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, 1, sub.Nodes[1].Index)
	assert.Equal(t, 2, children[0].Index)
	assert.Equal(t, 3, sub.Nodes[2].Index)
}

func TestBuildersAreImmutable(t *testing.T) {
	base := builder.NewSubPlan("base").WithNodes(
		builder.Assign("x", "1"),
	)
	withReturn := base.WithNodes(builder.Return("x"))

	first, err := base.Build()
	require.NoError(t, err)
	second, err := withReturn.Build()
	require.NoError(t, err)

	assert.Len(t, first.Nodes, 1)
	assert.Len(t, second.Nodes, 2)

	call := builder.Call("fetch").WithInput("url", "'a'")
	other := call.WithInput("url", "'b'")
	assert.NotEqual(t, call, other)
}

func TestBuildValidatesNodes(t *testing.T) {
	_, err := builder.NewSubPlan("bad").WithNodes(
		builder.Assign("", "1"),
	).Build()
	assert.ErrorIs(t, err, api.ErrMissingOutput)

	_, err = builder.NewSubPlan("").Build()
	assert.ErrorIs(t, err, api.ErrSubPlanIDEmpty)
}

func TestBuildPlan(t *testing.T) {
	plan, err := builder.NewPlan().WithSubPlans(
		builder.NewSubPlan("first").WithNodes(
			builder.Return("42"),
		),
		builder.NewSubPlan("second").
			WithInput("prior", "first").
			WithNodes(
				builder.Return("prior + 1"),
			),
	).Build()
	require.NoError(t, err)

	assert.NotEmpty(t, plan.PlanID)
	require.Len(t, plan.SubPlans, 2)
	assert.Equal(t, []api.SubPlanInput{
		{Name: "prior", From: "first"},
	}, plan.SubPlans[1].Inputs)
}

// A built sub-plan runs through the engine unchanged
func TestBuiltSubPlanExecutes(t *testing.T) {
	sub, err := builder.NewSubPlan("fizzbuzz").WithNodes(
		builder.Assign("words", "[]"),
		builder.For("n", "range(1, 6)",
			builder.If("n % 3 == 0",
				builder.Append("words", "'fizz'"),
			),
			builder.Else(
				builder.Append("words", "str(n)"),
			),
		),
		builder.Return("words"),
	).Build()
	require.NoError(t, err)

	ctx := runner.NewContext(nil)
	result, err := runner.New(nil).RunSubPlan(ctx, sub, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"1", "2", "fizz", "4", "5"}, result)
}

func TestCallNodeBuilder(t *testing.T) {
	sub, err := builder.NewSubPlan("calls").WithNodes(
		builder.Call("summarize").
			WithInputs(map[string]any{"text": "doc", "limit": "10"}).
			WithOutput("summary").
			WithDisplay(),
	).Build()
	require.NoError(t, err)

	node := sub.Nodes[0]
	assert.Equal(t, "summarize", node.Name)
	assert.Equal(t, "summary", node.Output)
	assert.True(t, node.Options.DisplayOutput)
	assert.Equal(t, "doc", node.Inputs["text"])
}

func TestForLoopModes(t *testing.T) {
	sub, err := builder.NewSubPlan("loops").WithNodes(
		builder.For("v", "items",
			builder.Append("out", "v"),
		).WithIndexVar("i").WithKeyVar("k"),
	).Build()
	require.NoError(t, err)

	node := sub.Nodes[0]
	assert.Equal(t, "i", node.Inputs[api.InputIndex])
	assert.Equal(t, "k", node.Inputs[api.InputKey])
}
