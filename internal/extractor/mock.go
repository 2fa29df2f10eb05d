package extractor

import (
	"context"
	"sync"
	"sync/atomic"

	"vidgate/internal/entity"
)

// Mock is a scriptable extraction client for tests. Each call consumes
// the next scripted outcome; the last outcome repeats once the script
// is exhausted.
type Mock struct {
	mu     sync.Mutex
	script []Outcome
	pos    int
	calls  atomic.Int64
}

// Outcome is one scripted Resolve result.
type Outcome struct {
	Info *entity.MediaInfo
	Err  error
}

// NewMock creates a mock client that plays back the given outcomes.
func NewMock(script ...Outcome) *Mock {
	return &Mock{script: script}
}

func (m *Mock) Resolve(ctx context.Context, url, quality, format string) (*entity.MediaInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.calls.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.script) == 0 {
		return &entity.MediaInfo{
			DirectURL: "https://cdn.example/" + url + "/" + quality,
			Title:     "mock video",
		}, nil
	}

	out := m.script[m.pos]
	if m.pos < len(m.script)-1 {
		m.pos++
	}

	return out.Info, out.Err
}

// Calls returns how many times Resolve ran.
func (m *Mock) Calls() int64 {
	return m.calls.Load()
}
