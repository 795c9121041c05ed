package jito

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbbot/registry"
	"github.com/michaelpento.lv/arbbot/types"
)

type relayRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     json.RawMessage `json:"id"`
}

func newRelay(t *testing.T, handle func(req relayRequest) (int, string)) *Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/bundles", r.URL.Path)
		var req relayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		status, body := handle(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return NewClient(registry.RelayEndpoint{Name: "test-relay", BaseURL: srv.URL + "/api/v1/"}, time.Second, zaptest.NewLogger(t))
}

func TestSendBundle(t *testing.T) {
	var got relayRequest
	c := newRelay(t, func(req relayRequest) (int, string) {
		got = req
		return http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":"2id3YC2jK9G5Wo2phDx4gJVAew8DcY5NAojnVuao8rkxwPYPe8cSwE5GzhEgJA2y8fVjDEo6iR6ykBvDxrTQrtpb"}`
	})

	id, err := c.SendBundle(context.Background(), []string{"AQID", "BAUG"})
	require.NoError(t, err)
	assert.Equal(t, "2id3YC2jK9G5Wo2phDx4gJVAew8DcY5NAojnVuao8rkxwPYPe8cSwE5GzhEgJA2y8fVjDEo6iR6ykBvDxrTQrtpb", id)
	assert.Equal(t, "sendBundle", got.Method)
	assert.JSONEq(t, `[["AQID","BAUG"],{"encoding":"base64"}]`, string(got.Params))
}

func TestSendBundleRejected(t *testing.T) {
	c := newRelay(t, func(relayRequest) (int, string) {
		return http.StatusOK, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"bundle contains an expired blockhash"}}`
	})

	_, err := c.SendBundle(context.Background(), []string{"AQID"})
	require.ErrorIs(t, err, types.ErrRelayRejected)
	assert.Contains(t, err.Error(), "expired blockhash")
}

func TestSendBundleRejectedWithHTTPError(t *testing.T) {
	c := newRelay(t, func(relayRequest) (int, string) {
		return http.StatusTooManyRequests, `{"jsonrpc":"2.0","id":1,"error":{"code":-32097,"message":"rate limited"}}`
	})

	_, err := c.SendBundle(context.Background(), []string{"AQID"})
	assert.ErrorIs(t, err, types.ErrRelayRejected)
}

func TestSendBundleTransportError(t *testing.T) {
	c := NewClient(registry.RelayEndpoint{Name: "dead", BaseURL: "http://127.0.0.1:1"}, 200*time.Millisecond, zaptest.NewLogger(t))

	_, err := c.SendBundle(context.Background(), []string{"AQID"})
	assert.ErrorIs(t, err, types.ErrSubmitFailed)
}

func TestBundleStatus(t *testing.T) {
	var got relayRequest
	c := newRelay(t, func(req relayRequest) (int, string) {
		got = req
		return http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":242806119},"value":[{"bundle_id":"abc","transactions":["sig1"],"slot":242804011,"confirmation_status":"finalized","err":{"Ok":null}}]}}`
	})

	s, err := c.BundleStatus(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "getBundleStatuses", got.Method)
	assert.JSONEq(t, `[["abc"]]`, string(got.Params))
	assert.Equal(t, uint64(242804011), s.Slot)
	assert.Equal(t, "finalized", s.ConfirmationStatus)
	assert.False(t, s.ExecutionFailed())
}

func TestBundleStatusUnknown(t *testing.T) {
	c := newRelay(t, func(relayRequest) (int, string) {
		return http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":[null]}}`
	})

	s, err := c.BundleStatus(context.Background(), "abc")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestBundleStatusInflight(t *testing.T) {
	var methods []string
	c := newRelay(t, func(req relayRequest) (int, string) {
		methods = append(methods, req.Method)
		if req.Method == "getBundleStatuses" {
			return http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":[]}}`
		}
		return http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":[{"bundle_id":"abc","status":"Invalid","landed_slot":null}]}}`
	})

	s, err := c.BundleStatus(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, []string{"getBundleStatuses", "getInflightBundleStatuses"}, methods)
	assert.Equal(t, "invalid", s.ConfirmationStatus)
	assert.Equal(t, uint64(0), s.Slot)
}

func TestExecutionFailed(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{``, false},
		{`null`, false},
		{`{"Ok":null}`, false},
		{`{"Err":{"InstructionError":[0,"InsufficientFunds"]}}`, true},
		{`"BlockhashNotFound"`, true},
	}
	for _, tt := range tests {
		s := &BundleStatus{Err: json.RawMessage(tt.raw)}
		assert.Equal(t, tt.want, s.ExecutionFailed(), tt.raw)
	}
}
