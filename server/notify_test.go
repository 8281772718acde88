package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_Emit(t *testing.T) {
	var got struct {
		Event string       `json:"event"`
		Data  EventPayload `json:"data"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, 200, map[string]any{"success": true})
	}))
	defer ts.Close()

	n := NewNotifier(ts.URL, testLogger())
	err := n.Emit(context.Background(), EvOrderCreated, EventPayload{OrderID: "O1", CompanyID: "C1"})
	require.NoError(t, err)
	assert.Equal(t, EvOrderCreated, got.Event)
	assert.Equal(t, "O1", got.Data.OrderID)
	assert.Equal(t, "C1", got.Data.CompanyID)
}

func TestNotifier_EmitNonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, 400, "unknown event")
	}))
	defer ts.Close()

	n := NewNotifier(ts.URL, testLogger())
	err := n.Emit(context.Background(), "bogus-event", EventPayload{})
	assert.Error(t, err)
}

func TestNotifier_EmitUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // connection refused from here on

	n := NewNotifier(ts.URL, testLogger())
	err := n.Emit(context.Background(), EvOrderCreated, EventPayload{OrderID: "O1"})
	assert.Error(t, err)

	// the fire-and-forget path swallows the same failure
	n.emit(EvOrderCreated, EventPayload{OrderID: "O1"})
}
