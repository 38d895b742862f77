package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/stark/internal/memory"
	"github.com/haasonsaas/stark/internal/register"
	"github.com/haasonsaas/stark/internal/skills"
	"github.com/haasonsaas/stark/pkg/models"
)

// DefaultRetrievalK is how many memories the prompt builder pulls per turn
// (§4.8 step 2's retrieve(query=user_message, k=K)).
const DefaultRetrievalK = 6

// PromptBuilder assembles one turn's CompletionRequest: system preamble +
// skill index + relevant memories + windowed transcript + user message +
// register snapshot (§4.8 step 2).
type PromptBuilder struct {
	System    string
	Retriever *memory.Retriever
	Skills    *skills.Manager
	K         int
}

// NewPromptBuilder returns a builder with the given system preamble. K
// falls back to DefaultRetrievalK when <= 0.
func NewPromptBuilder(system string, retriever *memory.Retriever, skillMgr *skills.Manager, k int) *PromptBuilder {
	if k <= 0 {
		k = DefaultRetrievalK
	}
	return &PromptBuilder{System: system, Retriever: retriever, Skills: skillMgr, K: k}
}

// Build renders the full prompt for a turn. transcript is the session's
// live window (oldest first) and already includes the latest user
// message; queryText (normally that same message's content) drives
// memory retrieval. regs may be nil for a turn with no register activity
// yet.
func (b *PromptBuilder) Build(ctx context.Context, identityID, queryText string, transcript []*models.Message, regs *register.Context) (CompletionRequest, error) {
	var system strings.Builder
	system.WriteString(b.System)

	if b.Skills != nil {
		if idx := b.Skills.Index(); len(idx) > 0 {
			system.WriteString("\n\nAvailable skills:\n")
			for _, e := range idx {
				fmt.Fprintf(&system, "- %s: %s\n", e.Name, e.Description)
			}
		}
	}

	if b.Retriever != nil && identityID != "" && queryText != "" {
		recalled, err := b.Retriever.Retrieve(ctx, identityID, queryText, memory.RetrieveOptions{K: b.K})
		if err != nil {
			return CompletionRequest{}, fmt.Errorf("retrieve memories: %w", err)
		}
		if len(recalled) > 0 {
			system.WriteString("\n\nRelevant memories:\n")
			for _, m := range recalled {
				fmt.Fprintf(&system, "- %s\n", m.Memory.Content)
			}
		}
	}

	if regs != nil {
		if snap := regs.Snapshot(); len(snap) > 0 {
			system.WriteString("\n\nActive registers:\n")
			for name, v := range snap {
				fmt.Fprintf(&system, "- %s: %s\n", name, renderRegister(v))
			}
		}
	}

	messages := make([]CompletionMessage, 0, len(transcript))
	for _, m := range transcript {
		messages = append(messages, CompletionMessage{Role: m.Role, Content: m.Content})
	}

	return CompletionRequest{System: system.String(), Messages: messages}, nil
}

func renderRegister(v models.RegisterValue) string {
	switch v.Kind {
	case models.RegisterAddress:
		return v.Address
	case models.RegisterRawInteger:
		return v.Raw
	case models.RegisterTokenRef:
		if v.Token != nil {
			return fmt.Sprintf("%s (%d decimals)", v.Token.Symbol, v.Token.Decimals)
		}
	}
	return string(v.Kind)
}

// SpliceSkill appends a resolved skill's body into the system preamble for
// one more provider round-trip (§4.8 step 4c).
func SpliceSkill(req CompletionRequest, skillBody string) CompletionRequest {
	req.System = req.System + "\n\n" + skillBody
	return req
}
