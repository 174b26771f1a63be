package providers

import (
	"context"
	"testing"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `{"a": 1}`, want: `{"a": 1}`},
		{name: "fenced", in: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "fenced with language", in: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "surrounding whitespace", in: "  {\"a\": 1}\n", want: `{"a": 1}`},
		{name: "fence without newline", in: "```json", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeObject(t *testing.T) {
	m, err := DecodeObject("```json\n{\"merchant\": \"Uber\", \"total\": 47.5}\n```")
	if err != nil {
		t.Fatalf("DecodeObject() error = %v", err)
	}
	if m["merchant"] != "Uber" {
		t.Errorf("merchant = %v", m["merchant"])
	}
	if m["total"] != 47.5 {
		t.Errorf("total = %v", m["total"])
	}

	for _, bad := range []string{`[1, 2]`, `"text"`, `not json at all`} {
		if _, err := DecodeObject(bad); err == nil {
			t.Errorf("DecodeObject(%q) error = nil, want error", bad)
		}
	}
}

func TestMockClientScript(t *testing.T) {
	c := NewMockClient()
	c.Respond(`{"a": 1}`).FailWith(ErrorTypeServer).Respond(`{"b": 2}`)

	req := &ChatRequest{System: "s", User: "u", Model: "m"}

	res, err := c.Chat(context.Background(), req)
	if err != nil || !res.Success || res.Content != `{"a": 1}` {
		t.Fatalf("first call = %+v, %v", res, err)
	}

	res, err = c.Chat(context.Background(), req)
	if err == nil || res.Success || res.ErrorType != ErrorTypeServer {
		t.Fatalf("second call = %+v, %v, want server_error", res, err)
	}

	res, err = c.Chat(context.Background(), req)
	if err != nil || res.Content != `{"b": 2}` {
		t.Fatalf("third call = %+v, %v", res, err)
	}

	// Script exhausted: falls back to ResponseText.
	res, err = c.Chat(context.Background(), req)
	if err != nil || res.Content != "{}" {
		t.Fatalf("fourth call = %+v, %v", res, err)
	}

	if got := c.RequestCount(); got != 4 {
		t.Errorf("RequestCount() = %d, want 4", got)
	}
	if got := len(c.Requests()); got != 4 {
		t.Errorf("len(Requests()) = %d, want 4", got)
	}
	if got := c.Requests()[0].System; got != "s" {
		t.Errorf("recorded System = %q", got)
	}
}

func TestMockClientShouldFail(t *testing.T) {
	c := NewMockClient()
	c.ShouldFail = true
	if _, err := c.Chat(context.Background(), &ChatRequest{}); err == nil {
		t.Fatal("Chat() error = nil, want failure")
	}
}
