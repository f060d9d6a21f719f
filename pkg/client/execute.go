package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brixel-ai/brixel-client/pkg/api"
	"github.com/brixel-ai/brixel-client/pkg/log"
	"github.com/brixel-ai/brixel-client/pkg/runner"
)

type (
	// ExecuteResult aggregates one plan execution: each sub-plan's output
	// keyed by its ID, the final sub-plan's output, and every displayed
	// value from local sub-plans in emission order
	ExecuteResult struct {
		Outputs   map[api.SubPlanID]any
		Output    any
		Displayed []api.DisplayedOutput
	}

	// externalRequest is the payload of an external execution call
	externalRequest struct {
		Inputs map[string]any `json:"inputs"`
		Stream bool           `json:"stream"`
	}

	// externalResponse is the buffered form of an external execution reply
	externalResponse struct {
		Output   any          `json:"output"`
		Messages []*api.Event `json:"messages"`
	}
)

// Streamed events can carry whole sub-plan outputs in one line, well past
// bufio's default token limit
const maxStreamLine = 16 * 1024 * 1024

// ExecutePlan walks the plan's sub-plans in order. Each sub-plan starts
// from a fresh context seeded with the shared files plus any declared
// inputs forwarded from earlier sub-plans' outputs. Local sub-plans run
// through the in-process engine with the agent's task-map snapshot;
// external ones are delegated to the platform, which echoes its events
// back for local republication
func (c *Client) ExecutePlan(
	ctx context.Context, plan *api.Plan, files []any,
) (*ExecuteResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if files == nil {
		files = []any{}
	}
	c.log.Info("executing plan",
		log.PlanID(plan.PlanID),
		slog.Int("sub_plans", len(plan.SubPlans)))

	res := &ExecuteResult{
		Outputs: make(map[api.SubPlanID]any, len(plan.SubPlans)),
	}
	var lastID api.SubPlanID

	for i := range plan.SubPlans {
		sub := &plan.SubPlans[i]
		lastID = sub.ID

		inputs := api.Args{"files": files}
		for _, in := range sub.Inputs {
			inputs[in.Name] = res.Outputs[in.From]
		}

		c.pub.Publish(sub.ID, api.EventSubPlanStart, nil, nil)

		var (
			output any
			err    error
		)
		if sub.IsLocal() {
			output, err = c.runLocal(sub, inputs, res)
		} else {
			output, err = c.runExternal(ctx, plan.PlanID, sub.ID, inputs)
		}
		if err != nil {
			return nil, fmt.Errorf("sub-plan %s: %w", sub.ID, err)
		}

		res.Outputs[sub.ID] = output
		res.Output = output
		c.pub.Publish(sub.ID, api.EventSubPlanDone, nil, nil)
	}

	if lastID != "" {
		c.pub.Publish(lastID, api.EventDone, nil, map[string]any{
			"output": res.Output,
		})
	}
	return res, nil
}

func (c *Client) runLocal(
	sub *api.SubPlan, inputs api.Args, res *ExecuteResult,
) (any, error) {
	c.log.Info("executing local sub-plan",
		log.SubPlanID(sub.ID), log.AgentID(sub.Agent.ID))

	rctx := runner.NewContext(inputs)
	tasks := c.reg.Tasks(sub.Agent.ID)
	output, err := runner.New(tasks).RunSubPlan(rctx, sub, c.pub)
	if err != nil {
		return nil, err
	}
	res.Displayed = append(res.Displayed, rctx.DisplayedOutputs()...)
	return output, nil
}

// runExternal delegates one sub-plan to the platform. The reply carries
// the platform's node events, which are republished locally so observers
// see one unified stream
func (c *Client) runExternal(
	ctx context.Context, planID api.PlanID, subID api.SubPlanID,
	inputs api.Args,
) (any, error) {
	c.log.Info("executing external sub-plan", log.SubPlanID(subID))

	path := fmt.Sprintf("/plan/%s/sub_plan/%s/execute", planID, subID)
	data, err := json.Marshal(externalRequest{
		Inputs: inputs,
		Stream: c.stream,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(data)),
	)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	if c.stream {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxStreamLine)
		return c.consumeStream(scanner)
	}

	var body externalResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAPI, err)
	}
	for _, msg := range body.Messages {
		c.republish(msg)
	}
	return body.Output, nil
}

// consumeStream reads newline-delimited JSON events, republishing node
// events as they arrive. The done event carries the sub-plan's output
func (c *Client) consumeStream(scanner *bufio.Scanner) (any, error) {
	var output any
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg api.Event
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAPI, err)
		}
		if msg.Event == api.EventDone {
			output = msg.Details["output"]
			continue
		}
		c.republish(&msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return output, nil
}

// republish forwards a remote event into the local publisher, skipping the
// lifecycle markers ExecutePlan emits itself
func (c *Client) republish(msg *api.Event) {
	switch msg.Event {
	case api.EventSubPlanStart, api.EventSubPlanDone, api.EventDone, "":
		return
	}
	var node *api.Node
	if msg.NodeIndex != nil {
		node = &api.Node{
			Index: *msg.NodeIndex,
			Name:  msg.NodeName,
		}
		c.log.Debug("republishing remote node event",
			log.SubPlanID(msg.PlanID),
			log.NodeName(msg.NodeName),
			log.NodeIndex(*msg.NodeIndex))
	}
	c.pub.Publish(msg.PlanID, msg.Event, node, msg.Details)
}
