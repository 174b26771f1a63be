package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// ScriptedReply is one queued MockClient response. A non-empty ErrorType
// makes the call fail with that kind.
type ScriptedReply struct {
	Content   string
	ErrorType string
}

// MockClient is an LLMClient for testing. Queued replies are consumed in
// order; once the script is exhausted it answers every call with
// ResponseText (or fails when ShouldFail is set).
type MockClient struct {
	Latency      time.Duration
	ResponseText string
	ShouldFail   bool

	mu       sync.Mutex
	script   []ScriptedReply
	requests []*ChatRequest

	requestCount atomic.Int64
}

// NewMockClient creates a mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{ResponseText: "{}"}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Respond queues successful replies with the given contents.
func (c *MockClient) Respond(contents ...string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, content := range contents {
		c.script = append(c.script, ScriptedReply{Content: content})
	}
	return c
}

// FailWith queues failing replies of the given error kinds.
func (c *MockClient) FailWith(errTypes ...string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, errType := range errTypes {
		c.script = append(c.script, ScriptedReply{ErrorType: errType})
	}
	return c
}

// Chat answers from the script.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		Model:     req.Model,
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			result.fail(ErrorTypeTimeout, ctx.Err().Error())
			result.ExecutionTime = time.Since(start)
			return result, ctx.Err()
		}
	}

	c.mu.Lock()
	c.requests = append(c.requests, req)
	var reply *ScriptedReply
	if len(c.script) > 0 {
		r := c.script[0]
		c.script = c.script[1:]
		reply = &r
	}
	c.mu.Unlock()

	if reply != nil {
		if reply.ErrorType != "" {
			msg := "mock failure: " + reply.ErrorType
			result.fail(reply.ErrorType, msg)
			result.ExecutionTime = time.Since(start)
			return result, fmt.Errorf("%s", msg)
		}
		result.Success = true
		result.Content = reply.Content
		result.ExecutionTime = time.Since(start)
		return result, nil
	}

	if c.ShouldFail {
		result.fail(ErrorTypeConnection, "mock client configured to fail")
		result.ExecutionTime = time.Since(start)
		return result, fmt.Errorf("mock client configured to fail")
	}

	result.Success = true
	result.Content = c.ResponseText
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// Requests returns every request seen so far, in order.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Reset clears the counter, the script and the recorded requests.
func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = nil
	c.requests = nil
	c.requestCount.Store(0)
}

// Verify interface
var _ LLMClient = (*MockClient)(nil)
