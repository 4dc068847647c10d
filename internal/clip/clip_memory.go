package clip

import "sync"

// Memory is an in-process clipboard. It backs headless hosts (containers,
// servers without a display) and tests.
type Memory struct {
	mu   sync.Mutex
	text string
}

// NewMemory returns an empty in-memory clipboard.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return "headless (memory)" }

func (m *Memory) ReadText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

func (m *Memory) WriteText(text string) error {
	m.Set(text)
	return nil
}

// Set replaces the clipboard text as if another application had copied it.
func (m *Memory) Set(text string) {
	m.mu.Lock()
	m.text = text
	m.mu.Unlock()
}

func (m *Memory) Close() {}
