package mcptransport

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/dispatcher"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/models"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/validation"
	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/requestcontext"
	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/testutil"
)

type call struct {
	action   string
	args     map[string]any
	identity string
}

type fakeDispatcher struct {
	calls []call
	reply dispatcher.Envelope
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, action string, args map[string]any) dispatcher.Envelope {
	f.calls = append(f.calls, call{action: action, args: args, identity: requestcontext.ClientIdentity(ctx)})
	env := f.reply
	env.Tool = action
	return env
}

func newServer(reply dispatcher.Envelope) (*Server, *fakeDispatcher) {
	d := &fakeDispatcher{reply: reply}
	return New(d, validation.New(), "test"), d
}

func findTool(t *testing.T, s *Server, name string) mcp.Tool {
	t.Helper()
	for _, tool := range s.Tools() {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %s not registered", name)
	return mcp.Tool{}
}

func TestToolsMirrorValidatorRules(t *testing.T) {
	s, _ := newServer(dispatcher.Envelope{Success: true})

	assert.Len(t, s.Tools(), len(validation.New().Actions()))

	create := findTool(t, s, validation.ActionCreateWatch)
	assert.Equal(t, []string{"url"}, create.InputSchema.Required)
	assert.Contains(t, create.InputSchema.Properties, "url")
	assert.Contains(t, create.InputSchema.Properties, "tag")
	tag := create.InputSchema.Properties["tag"].(map[string]any)
	assert.Equal(t, validation.DefaultMaxTagLength, tag["maxLength"])

	get := findTool(t, s, validation.ActionGetWatch)
	assert.Equal(t, []string{"watch_id"}, get.InputSchema.Required)
	require.NotNil(t, get.Annotations.ReadOnlyHint)
	assert.True(t, *get.Annotations.ReadOnlyHint)

	del := findTool(t, s, validation.ActionDeleteWatch)
	require.NotNil(t, del.Annotations.DestructiveHint)
	assert.True(t, *del.Annotations.DestructiveHint)

	list := findTool(t, s, validation.ActionListWatches)
	assert.Empty(t, list.InputSchema.Required)
}

func TestURLPatternMatchesValidator(t *testing.T) {
	s, _ := newServer(dispatcher.Envelope{Success: true})
	create := findTool(t, s, validation.ActionCreateWatch)
	prop := create.InputSchema.Properties["url"].(map[string]any)
	pattern, ok := prop["pattern"].(string)
	require.True(t, ok)
	re := regexp.MustCompile(pattern)
	v := validation.New()

	for _, raw := range []string{"https://example.com", "HTTP://example.com", "HtTpS://example.com/path"} {
		_, err := v.Validate(validation.ActionCreateWatch, map[string]any{"url": raw})
		require.NoError(t, err, raw)
		assert.True(t, re.MatchString(raw), raw)
	}
	for _, raw := range []string{"ftp://example.com", "example.com"} {
		assert.False(t, re.MatchString(raw), raw)
	}
}

func TestToolsListOverJSONRPC(t *testing.T) {
	s, _ := newServer(dispatcher.Envelope{Success: true})

	resp := s.MCPServer().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	var names []string
	for _, tool := range decoded.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, validation.New().Actions(), names)
}

func TestHandler(t *testing.T) {
	t.Run("success envelope is text content", func(t *testing.T) {
		s, d := newServer(dispatcher.Envelope{Success: true, Data: map[string]any{"uuid": "x"}})
		req := mcp.CallToolRequest{Params: mcp.CallToolParams{
			Name:      validation.ActionCreateWatch,
			Arguments: map[string]any{"url": "https://example.com"},
		}}

		result, err := s.handler(validation.ActionCreateWatch)(stdioContext(context.Background()), req)
		require.NoError(t, err)
		assert.False(t, result.IsError)
		require.Len(t, result.Content, 1)
		text, ok := result.Content[0].(mcp.TextContent)
		require.True(t, ok)

		var env map[string]any
		require.NoError(t, json.Unmarshal([]byte(text.Text), &env))
		assert.Equal(t, true, env["success"])
		assert.Equal(t, validation.ActionCreateWatch, env["tool"])

		require.Len(t, d.calls, 1)
		assert.Equal(t, map[string]any{"url": "https://example.com"}, d.calls[0].args)
		assert.Equal(t, models.StdioIdentity, d.calls[0].identity)
	})

	t.Run("failure marks the result as an error", func(t *testing.T) {
		s, _ := newServer(dispatcher.Envelope{Success: false, Error: dispatcher.CategoryValidation, Kind: "InvalidUUID"})
		result, err := s.handler(validation.ActionGetWatch)(context.Background(), mcp.CallToolRequest{})
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestHTTPContext(t *testing.T) {
	r := httptest.NewRequest("POST", EndpointPath, nil)
	r = testutil.WithRequestID(testutil.WithClientIdentity(r, "key:abc"), "req-1")
	r = r.WithContext(requestcontext.WithClientMetadata(r.Context(), "10.0.0.1", "agent/1.0"))

	ctx := httpContext(context.Background(), r)

	assert.Equal(t, "key:abc", requestcontext.ClientIdentity(ctx))
	assert.Equal(t, "req-1", requestcontext.RequestID(ctx))
	assert.Equal(t, "10.0.0.1", requestcontext.ClientIP(ctx))
}
