package llm

import (
	"context"
	"errors"
)

// Client abstracts LLM providers. Complete sends one request and returns the
// raw text of the model's answer.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// Request carries one structured-output completion.
type Request struct {
	System string
	Prompt string
	Schema *Schema
}

// Type names a JSON schema type.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
)

// Schema is the provider-neutral subset of JSON schema the providers accept.
type Schema struct {
	Type        Type
	Description string
	Enum        []string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("LLM provider not configured")

// PlaceholderClient stands in when no provider credentials are present.
type PlaceholderClient struct{}

// Complete returns ErrNotConfigured.
func (PlaceholderClient) Complete(ctx context.Context, req Request) (string, error) {
	return "", ErrNotConfigured
}

func (PlaceholderClient) Name() string { return "none" }
