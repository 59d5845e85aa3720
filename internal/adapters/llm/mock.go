package llm

import (
	"context"
	"strings"
	"sync"
)

// MockLLM is a rule-driven InferenceClient for dev mode and tests. Rules are
// matched against the system prompt in registration order; unmatched calls
// get a generic reply. Calls are recorded for assertions.
type MockLLM struct {
	mu    sync.Mutex
	rules []mockRule
	calls []MockCall
	err   error
}

type mockRule struct {
	substr string
	reply  string
}

type MockCall struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// Respond registers a canned reply for calls whose system prompt contains
// substr.
func (m *MockLLM) Respond(substr, reply string) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{substr: substr, reply: reply})
	return m
}

// Fail makes every subsequent call return err.
func (m *MockLLM) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

func (m *MockLLM) Invoke(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt, Temperature: temperature})
	if m.err != nil {
		return "", m.err
	}
	for _, r := range m.rules {
		if strings.Contains(systemPrompt, r.substr) {
			return r.reply, nil
		}
	}
	return "PATIENT SUMMARY: general consultation.\nURGENCY: LOW", nil
}
