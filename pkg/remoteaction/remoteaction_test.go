package remoteaction_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embabel/agent-core-go/pkg/action"
	"github.com/embabel/agent-core-go/pkg/planning"
	"github.com/embabel/agent-core-go/pkg/remoteaction"
)

func newTestServer(t *testing.T) (*remoteaction.Server, *httptest.Server) {
	t.Helper()
	srv := remoteaction.NewServer(nil)

	greet := planning.NewAction("greet",
		planning.WithDescription("greets a named visitor"),
		planning.WithInputs(planning.Binding{Name: "name", Type: "Visitor"}),
		planning.WithOutputs(planning.Binding{Name: "greeting", Type: "Greeting"}),
	)
	require.NoError(t, srv.RegisterAction(greet, func(_ context.Context, inputs map[string]any) (map[string]any, error) {
		name, _ := inputs["name"].(string)
		return map[string]any{"greeting": "hello, " + name}, nil
	}))

	require.NoError(t, srv.RegisterType(
		remoteaction.TypeDescriptor{Name: "Visitor", CreationPermitted: true},
		[]byte(`{"type":"string","minLength":1}`),
	))

	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)
	return srv, httpSrv
}

func TestListActions_ReturnsRegisteredDescriptors(t *testing.T) {
	_, httpSrv := newTestServer(t)
	client := remoteaction.New(httpSrv.URL)

	actions, err := client.ListActions(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "greet", actions[0].Name)
	assert.Equal(t, []remoteaction.Binding{{Name: "name", Type: "Visitor"}}, actions[0].Inputs)
}

func TestListTypes_ReturnsRegisteredSchemas(t *testing.T) {
	_, httpSrv := newTestServer(t)
	client := remoteaction.New(httpSrv.URL)

	types, err := client.ListTypes(context.Background())
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "Visitor", types[0].Name)
}

func TestExecute_InvokesHostedActionBody(t *testing.T) {
	_, httpSrv := newTestServer(t)
	client := remoteaction.New(httpSrv.URL)

	outputs, err := client.Execute(context.Background(), "greet", map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello, ada", outputs["greeting"])
}

func TestExecute_RejectsInputFailingSchemaValidation(t *testing.T) {
	_, httpSrv := newTestServer(t)
	client := remoteaction.New(httpSrv.URL)

	_, err := client.Execute(context.Background(), "greet", map[string]any{"name": ""})
	assert.Error(t, err)
}

func TestExecute_UnknownActionReturnsError(t *testing.T) {
	_, httpSrv := newTestServer(t)
	client := remoteaction.New(httpSrv.URL)

	_, err := client.Execute(context.Background(), "nonexistent", map[string]any{})
	assert.Error(t, err)
}

func TestExecute_MissingRequiredInputReturnsError(t *testing.T) {
	_, httpSrv := newTestServer(t)
	client := remoteaction.New(httpSrv.URL)

	_, err := client.Execute(context.Background(), "greet", map[string]any{})
	assert.Error(t, err)
}

func TestRegister_StoresAnnouncedPeer(t *testing.T) {
	srv, httpSrv := newTestServer(t)
	client := remoteaction.New(httpSrv.URL)

	require.NoError(t, client.Register(context.Background(), "zoo-keeper", "http://127.0.0.1:9000", []remoteaction.ActionDescriptor{
		{Name: "feed", Inputs: []remoteaction.Binding{{Name: "animal", Type: "Animal"}}},
	}))

	peers := srv.Peers()
	require.Contains(t, peers, "zoo-keeper")
	assert.Equal(t, "http://127.0.0.1:9000", peers["zoo-keeper"].BaseURL)
}

// TestExecuteRequest_DecodesSpecLiteralWirePayload pins the wire field
// names spec.md §6's worked example uses — {"action_name":...,
// "parameters":...} — so a future rename of ExecuteRequest's json tags
// is caught even though client<->server round trips are self-consistent.
func TestExecuteRequest_DecodesSpecLiteralWirePayload(t *testing.T) {
	payload := []byte(`{"action_name":"greet","parameters":{"name":"Bob","language":"en"}}`)

	var req remoteaction.ExecuteRequest
	require.NoError(t, json.NewDecoder(bytes.NewReader(payload)).Decode(&req))

	assert.Equal(t, "greet", req.ActionName)
	require.Contains(t, req.Parameters, "name")
	require.Contains(t, req.Parameters, "language")

	var name string
	require.NoError(t, json.Unmarshal(req.Parameters["name"], &name))
	assert.Equal(t, "Bob", name)
}

func TestRegisterAction_RejectsDuplicateName(t *testing.T) {
	srv, _ := newTestServer(t)
	dup := planning.NewAction("greet")
	err := srv.RegisterAction(dup, action.Body(func(context.Context, map[string]any) (map[string]any, error) {
		return nil, nil
	}))
	assert.Error(t, err)
}
