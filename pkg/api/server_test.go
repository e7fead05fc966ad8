package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmesh/bitmesh-node/pkg/mesh"
	"github.com/bitmesh/bitmesh-node/pkg/transport"
)

func newTestServer(t *testing.T) (*Server, *mesh.Node) {
	t.Helper()

	lb := transport.NewLoopbackMesh()
	node := mesh.New(lb.Attach("AAAAAAAA"), nil)
	require.NoError(t, node.Init())
	require.NoError(t, node.Start("AAAAAAAA", "Alice"))
	t.Cleanup(node.Stop)

	return NewServer(node, DefaultConfig()), node
}

func TestStatusEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, "AAAAAAAA", status.PeerID)
	assert.Equal(t, "Alice", status.Nickname)
}

func TestPeersEndpointEmpty(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/peers", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var peers []PeerInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &peers))
	assert.Empty(t, peers)
}

func TestSendBroadcast(t *testing.T) {
	server, _ := newTestServer(t)

	body, _ := json.Marshal(SendRequest{Kind: "broadcast", Content: "hello"})
	req := httptest.NewRequest("POST", "/api/v1/send", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp SendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestSendValidation(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name string
		body SendRequest
		code int
	}{
		{"unknown kind", SendRequest{Kind: "shout", Content: "x"}, http.StatusBadRequest},
		{"missing content", SendRequest{Kind: "broadcast"}, http.StatusBadRequest},
		{"private without session", SendRequest{Kind: "private", To: "BBBBBBBB", Content: "x"}, http.StatusUnprocessableEntity},
		{"private bad peer id", SendRequest{Kind: "private", To: "nope", Content: "x"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest("POST", "/api/v1/send", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			server.router.ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestJoinChannel(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/channels/general/join", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
