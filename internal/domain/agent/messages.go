package agent

import (
	"github.com/askdb-ai/askdb/internal/domain/knowledge"
	"github.com/askdb-ai/askdb/internal/llm"
)

// seedMessages builds the initial message list for one run: the system
// prompt, prior history, then the new question. History turns with roles
// other than user/assistant are dropped — system and tool turns are not
// replayed verbatim.
func seedMessages(system string, history []knowledge.Message, question string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, m := range history {
		switch m.Role {
		case llm.RoleUser, llm.RoleAssistant:
			messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: question})
}
