// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSlidingSyncTestServer routes the single sliding-sync endpoint
// through a real gorilla/mux router, the same routing library the
// teacher uses to mount its client-server API handlers, so HTTPTransport
// is exercised against an actual net/http server rather than a fake.
func newSlidingSyncTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc("/_matrix/client/unstable/org.matrix.simplified_msc3575/sync", handler).Methods(http.MethodPost)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPTransportSendsBodyAndAuthHeader(t *testing.T) {
	var gotAuth, gotPos string
	var gotBody []byte
	srv := newSlidingSyncTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPos = r.URL.Query().Get("pos")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"pos":"a"}`))
	})

	tr := NewHTTPTransport(srv.URL, AccessTokenFunc(func(context.Context) (string, error) {
		return "tok123", nil
	}), nil)

	respBody, status, err := tr.Send(context.Background(), []byte(`{"txn_id":"1"}`), "prev-pos")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"pos":"a"}`, string(respBody))
	assert.Equal(t, "Bearer tok123", gotAuth)
	assert.Equal(t, "prev-pos", gotPos)
	assert.JSONEq(t, `{"txn_id":"1"}`, string(gotBody))
}

func TestHTTPTransportOmitsPosWhenEmpty(t *testing.T) {
	sawPosParam := false
	srv := newSlidingSyncTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, sawPosParam = r.URL.Query()["pos"]
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"pos":"a"}`))
	})

	tr := NewHTTPTransport(srv.URL, nil, nil)
	_, status, err := tr.Send(context.Background(), []byte(`{}`), "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, sawPosParam)
}

func TestHTTPTransportPropagatesNonTwoXXStatus(t *testing.T) {
	srv := newSlidingSyncTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"HTTP 400 : session expired"}`))
	})

	tr := NewHTTPTransport(srv.URL, nil, nil)
	respBody, status, err := tr.Send(context.Background(), []byte(`{}`), "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(respBody), "session expired")
}
