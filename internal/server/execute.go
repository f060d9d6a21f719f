package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brixel-ai/brixel-client/pkg/api"
	"github.com/brixel-ai/brixel-client/pkg/log"
	"github.com/brixel-ai/brixel-client/pkg/runner"
)

type (
	// executeRequest is one sub-plan delegated to this agent, with the
	// initial context bindings resolved by the caller
	executeRequest struct {
		Inputs api.Args      `json:"inputs"`
		ID     api.SubPlanID `json:"id"`
		Nodes  []api.Node    `json:"plan"`
	}

	executeResponse struct {
		Output    any                   `json:"output"`
		Displayed []api.DisplayedOutput `json:"displayed_outputs"`
	}
)

func (s *Server) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := api.SubPlan{
		ID:    req.ID,
		Agent: api.AgentRef{ID: s.agentID, Type: api.AgentTypeLocal},
		Nodes: req.Nodes,
	}
	if err := sub.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pub := s.Publisher()
	start := time.Now()
	pub.Publish(sub.ID, api.EventSubPlanStart, nil, nil)

	rctx := runner.NewContext(req.Inputs)
	eng := runner.New(s.reg.Tasks(s.agentID))
	output, err := eng.RunSubPlan(rctx, &sub, pub)
	if err != nil {
		slog.Error("Sub-plan execution failed",
			log.SubPlanID(sub.ID),
			log.AgentID(s.agentID),
			log.Error(err))
		pub.Publish(sub.ID, api.EventExecutionInterrupted, nil, map[string]any{
			"reason": map[string]any{"error": err.Error()},
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	elapsed := time.Since(start).Seconds()
	pub.Publish(sub.ID, api.EventSubPlanDone, nil, map[string]any{
		"plan_id":        sub.ID,
		"execution_time": elapsed,
	})

	displayed := rctx.DisplayedOutputs()
	if displayed == nil {
		displayed = []api.DisplayedOutput{}
	}
	pub.Publish(sub.ID, api.EventDone, nil, map[string]any{
		"execution_time":    elapsed,
		"finish_reason":     "success",
		"displayed_outputs": displayed,
		"output":            output,
	})

	c.JSON(http.StatusOK, executeResponse{
		Output:    output,
		Displayed: displayed,
	})
}
