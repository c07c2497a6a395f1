// Package remoteaction implements the REST protocol by which an agent
// process can discover and invoke actions hosted by a remote collaborator,
// per spec.md/SPEC_FULL.md §6 "External interfaces". Client calls
// GET /api/v1/actions, GET /api/v1/types, and POST /api/v1/actions/execute
// against a Server, which additionally exposes POST /api/v1/remote/register
// so a collaborator can announce itself and the actions it hosts. Grounded
// on the teacher's runtime/a2a package (JSON-RPC-over-HTTP collaborator
// boundary: typed request/response structs round-tripped through
// encoding/json, a pluggable registry of callable peers) adapted to a plain
// REST shape and to planning.Action/Binding rather than A2A tasks/skills.
package remoteaction

import "encoding/json"

// Binding names a typed input or output slot on a remote action, mirroring
// planning.Binding's wire form.
type Binding struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ActionDescriptor is the wire representation of a planning.Action exposed
// by a remote collaborator: enough to let a caller resolve inputs, validate
// them, and invoke the action without sharing Go types. Matches spec.md §6's
// `{name, description, inputs[{name,type}], outputs[{name,type}],
// pre[string], post[string], cost, value, can_rerun}` shape.
type ActionDescriptor struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Inputs      []Binding `json:"inputs,omitempty"`
	Outputs     []Binding `json:"outputs,omitempty"`
	// Pre lists precondition names, each prefixed with "!" if the
	// condition must be FALSE rather than TRUE. UNKNOWN ("don't care")
	// preconditions are omitted.
	Pre []string `json:"pre,omitempty"`
	// Post lists effect names in the same "name"/"!name" notation as Pre.
	Post []string `json:"post,omitempty"`
	// Cost and Value are evaluated against an empty world state, which is
	// exact for the common case of a constant cost/value function.
	Cost     float64 `json:"cost"`
	Value    float64 `json:"value"`
	CanRerun bool    `json:"can_rerun"`
}

// PropertyDescriptor describes a single named, typed property of a domain
// type exposed by a remote collaborator.
type PropertyDescriptor struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// TypeDescriptor is the wire representation of a domain type, matching
// spec.md §6's `{name, description, ownProperties[{name,type,description}],
// parents, creationPermitted}` shape.
type TypeDescriptor struct {
	Name              string               `json:"name"`
	Description       string               `json:"description,omitempty"`
	OwnProperties     []PropertyDescriptor `json:"ownProperties,omitempty"`
	Parents           []string             `json:"parents,omitempty"`
	CreationPermitted bool                 `json:"creationPermitted"`
}

// ExecuteRequest is the POST /api/v1/actions/execute request body, matching
// spec.md §6's `{action_name, parameters: {name→value}}` shape.
type ExecuteRequest struct {
	ActionName string                     `json:"action_name"`
	Parameters map[string]json.RawMessage `json:"parameters,omitempty"`
}

// ExecuteResponse is the POST /api/v1/actions/execute response body.
// Error is set when the action body failed; otherwise Outputs carries the
// body's outputs (absent when the body returned none).
type ExecuteResponse struct {
	Outputs map[string]any `json:"outputs,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// RegisterRequest is the POST /api/v1/remote/register request body: a
// collaborator announces the base URL callers should use to reach it and
// the actions it hosts there.
type RegisterRequest struct {
	Name    string             `json:"name"`
	BaseURL string             `json:"baseUrl"`
	Actions []ActionDescriptor `json:"actions"`
}

// RegisterResponse acknowledges a RegisterRequest.
type RegisterResponse struct {
	Registered int `json:"registered"`
}
