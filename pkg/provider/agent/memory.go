package agent

import "sync"

// Memory is the mutex-guarded model-side conversation log shared by the
// concrete adapters. It holds everything except the system prompt, which
// adapters keep separately so it can be injected in backend-specific ways.
type Memory struct {
	mu       sync.Mutex
	messages []Message
}

// Load replaces the whole log.
func (m *Memory) Load(messages []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages[:0:0], messages...)
}

// AppendUser adds a user message.
func (m *Memory) AppendUser(content string) {
	m.append(Message{Role: "user", Content: content})
}

// AppendAssistant adds a completed assistant reply.
func (m *Memory) AppendAssistant(content string) {
	if content == "" {
		return
	}
	m.append(Message{Role: "assistant", Content: content})
}

// AppendInterrupted records a barge-in: the partial reply the user heard,
// then a marker telling the model its answer was cut short.
func (m *Memory) AppendInterrupted(heard string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if heard != "" {
		m.messages = append(m.messages, Message{Role: "assistant", Content: heard})
	}
	m.messages = append(m.messages, Message{Role: "system", Content: InterruptedMarker})
}

// Snapshot returns a copy of the log.
func (m *Memory) Snapshot() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(m.messages[:0:0], m.messages...)
}

func (m *Memory) append(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}
