package conductor

import (
	"context"
	"fmt"

	"researchnerd/internal/jsonx"
	"researchnerd/internal/llm"
	"researchnerd/internal/logging"
)

// defaultAgent is the neutral persona used when selection fails entirely.
const (
	defaultAgent = "Default Agent"
	defaultRole  = "You are a critical-thinking AI research assistant. Your sole purpose is to write " +
		"well written, critically acclaimed, objective and structured reports on given text."
)

type personaSelection struct {
	Server          string `json:"server"`
	AgentRolePrompt string `json:"agent_role_prompt"`
}

// choosePersona classifies the query into an agent persona unless one was
// pre-chosen. Persona selection never fails hard: the parser ladder ends
// in the neutral default.
func (c *Conductor) choosePersona(ctx context.Context) error {
	if c.task.Agent != "" && c.task.Role != "" {
		return nil
	}

	taskText := c.task.Query
	if c.task.ParentQuery != "" {
		taskText = fmt.Sprintf("%s - %s", c.task.ParentQuery, c.task.Query)
	}

	response, err := c.smart.Chat(ctx, []llm.Message{
		llm.System(c.family.AutoAgentInstructions()),
		llm.User(fmt.Sprintf("task: %s", taskText)),
	}, llm.Options{}.WithTemperature(0.15))
	if err != nil {
		logging.Get(logging.CategoryConductor).Warn("persona selection call failed: %v, using the default agent", err)
		c.task.Agent, c.task.Role = defaultAgent, defaultRole
		return err
	}

	var selection personaSelection
	if err := jsonx.Unmarshal(response, &selection); err != nil || selection.Server == "" || selection.AgentRolePrompt == "" {
		logging.Get(logging.CategoryConductor).Warn("no valid persona JSON in response, using the default agent")
		c.task.Agent, c.task.Role = defaultAgent, defaultRole
		return nil
	}

	c.task.Agent = selection.Server
	c.task.Role = selection.AgentRolePrompt
	logging.Conductor("persona selected: %s", c.task.Agent)
	return nil
}
