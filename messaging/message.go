package messaging

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Dispatch records one expanded prompt handed off to an agent: the
// output of a TemplateBuilder.Build plus enough metadata to correlate it
// back to the rule that produced it and the execstate.ExecutionRecord it
// will eventually produce.
type Dispatch struct {
	ID        string    `json:"id"`
	Agent     string    `json:"agent"`
	Prompt    string    `json:"prompt"`
	RuleID    string    `json:"rule_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDispatch stamps a fresh, time-sortable ID onto a dispatch record.
func NewDispatch(agent, prompt, ruleID string) *Dispatch {
	return &Dispatch{
		ID:        generateID(),
		Agent:     agent,
		Prompt:    prompt,
		RuleID:    ruleID,
		Timestamp: time.Now(),
	}
}

func (d *Dispatch) String() string {
	return fmt.Sprintf("Dispatch{ID: %s, Agent: %s, RuleID: %s}", d.ID, d.Agent, d.RuleID)
}

func generateID() string {
	return uuid.Must(uuid.NewV7()).String()
}
