// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersIncrement(t *testing.T) {
	m := New()
	m.Reset()
	m.Monitor()
	m.Monitor()
	m.Ignore()
	m.DecodeError()
	m.DNSParseError()
	m.SendError()
	m.LearnerSize(7)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "interceptor_connections_reset_total 1")
	assert.Contains(t, body, "interceptor_connections_monitored_total 2")
	assert.Contains(t, body, "interceptor_learner_entries 7")
}

func TestMetrics_Healthz(t *testing.T) {
	m := New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	m.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
