package remoteaction

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/embabel/agent-core-go/pkg/action"
	"github.com/embabel/agent-core-go/pkg/condition"
	"github.com/embabel/agent-core-go/pkg/planning"
	"github.com/embabel/agent-core-go/pkg/telemetry"
	"github.com/embabel/agent-core-go/pkg/worldstate"
)

// DescribeAction converts a planning.Action into its wire descriptor. Cost
// and Value are evaluated against an empty world state.
func DescribeAction(act *planning.Action) ActionDescriptor {
	ws := worldstate.Empty()
	return ActionDescriptor{
		Name:        act.Name(),
		Description: act.Description(),
		Inputs:      describeBindings(act.Inputs()),
		Outputs:     describeBindings(act.Outputs()),
		Pre:         describeEffectSpec(act.Preconditions()),
		Post:        describeEffectSpec(act.Effects()),
		Cost:        act.Cost(ws),
		Value:       act.Value(ws),
		CanRerun:    act.CanRerun(),
	}
}

// describeEffectSpec renders an EffectSpec as a sorted list of condition
// names, each prefixed with "!" when the determination is FALSE. UNKNOWN
// ("don't care") entries are omitted.
func describeEffectSpec(spec condition.EffectSpec) []string {
	names := make([]string, 0, len(spec))
	for name := range spec {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		switch spec[name] {
		case condition.TRUE:
			out = append(out, name)
		case condition.FALSE:
			out = append(out, "!"+name)
		}
	}
	return out
}

func describeBindings(bindings []planning.Binding) []Binding {
	out := make([]Binding, len(bindings))
	for i, b := range bindings {
		out[i] = Binding{Name: b.Name, Type: b.Type}
	}
	return out
}

type hostedAction struct {
	descriptor ActionDescriptor
	body       action.Body
}

// Server hosts a set of actions over the remote action REST protocol,
// validating execute payloads against JSON Schemas registered per domain
// type name.
type Server struct {
	mu      sync.RWMutex
	actions map[string]hostedAction
	types   map[string]TypeDescriptor
	schemas map[string]*jsonschema.Schema
	peers   map[string]RegisterRequest
	logger  telemetry.Logger
}

// NewServer constructs an empty Server. A nil logger is replaced with a
// no-op logger.
func NewServer(logger telemetry.Logger) *Server {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Server{
		actions: make(map[string]hostedAction),
		types:   make(map[string]TypeDescriptor),
		schemas: make(map[string]*jsonschema.Schema),
		peers:   make(map[string]RegisterRequest),
		logger:  logger,
	}
}

// RegisterAction hosts act, invoking body when a caller executes it by
// name. Returns an error if an action with the same name is already hosted.
func (s *Server) RegisterAction(act *planning.Action, body action.Body) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.actions[act.Name()]; dup {
		return fmt.Errorf("remoteaction: action %q already registered", act.Name())
	}
	s.actions[act.Name()] = hostedAction{descriptor: DescribeAction(act), body: body}
	return nil
}

// RegisterType publishes desc as the /api/v1/types descriptor for
// desc.Name and compiles schema as the JSON Schema used to validate any
// execute input declared with that type. Returns an error if desc.Name is
// empty or schema does not compile.
func (s *Server) RegisterType(desc TypeDescriptor, schema json.RawMessage) error {
	if desc.Name == "" {
		return fmt.Errorf("remoteaction: type descriptor name is required")
	}
	var doc any
	if err := json.Unmarshal(schema, &doc); err != nil {
		return fmt.Errorf("remoteaction: unmarshaling schema for type %q: %w", desc.Name, err)
	}
	c := jsonschema.NewCompiler()
	resource := desc.Name + ".json"
	if err := c.AddResource(resource, doc); err != nil {
		return fmt.Errorf("remoteaction: adding schema resource for type %q: %w", desc.Name, err)
	}
	compiled, err := c.Compile(resource)
	if err != nil {
		return fmt.Errorf("remoteaction: compiling schema for type %q: %w", desc.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[desc.Name] = desc
	s.schemas[desc.Name] = compiled
	return nil
}

// Peers returns the collaborators announced via RegisterRequest, keyed by
// name.
func (s *Server) Peers() map[string]RegisterRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]RegisterRequest, len(s.peers))
	for k, v := range s.peers {
		out[k] = v
	}
	return out
}

// Handler returns the net/http.Handler implementing the remote action
// protocol's four endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/actions", s.handleListActions)
	mux.HandleFunc("GET /api/v1/types", s.handleListTypes)
	mux.HandleFunc("POST /api/v1/actions/execute", s.handleExecute)
	mux.HandleFunc("POST /api/v1/remote/register", s.handleRegister)
	return mux
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	descriptors := make([]ActionDescriptor, 0, len(s.actions))
	for _, a := range s.actions {
		descriptors = append(descriptors, a.descriptor)
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, descriptors)
}

func (s *Server) handleListTypes(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	descriptors := make([]TypeDescriptor, 0, len(s.types))
	for _, t := range s.types {
		descriptors = append(descriptors, t)
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, descriptors)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	hosted, ok := s.actions[req.ActionName]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, fmt.Sprintf("unknown action %q", req.ActionName), http.StatusNotFound)
		return
	}

	inputs, err := s.validateAndDecodeInputs(hosted.descriptor, req.Parameters)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	outputs, err := hosted.body(r.Context(), inputs)
	if err != nil {
		s.logger.Warn(r.Context(), "remote action execution failed", "action", req.ActionName, "error", err)
		writeJSON(w, http.StatusOK, ExecuteResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ExecuteResponse{Outputs: outputs})
}

// validateAndDecodeInputs checks every required binding is present and, if
// a schema is registered for its declared type, validates the raw JSON
// against that schema before decoding, rejecting malformed calls before
// they reach the action body.
func (s *Server) validateAndDecodeInputs(desc ActionDescriptor, raw map[string]json.RawMessage) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inputs := make(map[string]any, len(desc.Inputs))
	for _, binding := range desc.Inputs {
		field, ok := raw[binding.Name]
		if !ok {
			return nil, fmt.Errorf("remoteaction: missing input %q (type %s)", binding.Name, binding.Type)
		}
		if schema, ok := s.schemas[binding.Type]; ok {
			var doc any
			if err := json.Unmarshal(field, &doc); err != nil {
				return nil, fmt.Errorf("remoteaction: unmarshaling input %q: %w", binding.Name, err)
			}
			if err := schema.Validate(doc); err != nil {
				return nil, fmt.Errorf("remoteaction: input %q failed schema validation for type %s: %w", binding.Name, binding.Type, err)
			}
		}
		var value any
		if err := json.Unmarshal(field, &value); err != nil {
			return nil, fmt.Errorf("remoteaction: unmarshaling input %q: %w", binding.Name, err)
		}
		inputs[binding.Name] = value
	}
	return inputs, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.BaseURL == "" {
		http.Error(w, "name and baseUrl are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.peers[req.Name] = req
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, RegisterResponse{Registered: len(req.Actions)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
