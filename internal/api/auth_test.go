package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateToken(t *testing.T) {
	assert.True(t, ValidateToken("abc", "abc"))
	assert.False(t, ValidateToken("abd", "abc"))
	assert.False(t, ValidateToken("", "abc"))
	assert.False(t, ValidateToken("abc", ""))
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr string
	}{
		{name: "bearer", header: "Bearer tok", want: "tok"},
		{name: "trailing space", header: "Bearer tok  ", want: "tok"},
		{name: "missing", header: "", wantErr: "missing Authorization header"},
		{name: "basic", header: "Basic dXNlcjpwYXNz", wantErr: "invalid Authorization header format"},
		{name: "empty bearer", header: "Bearer   ", wantErr: "missing bearer token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractToken(req)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, realConverter(), nil, testToken)
	body := `{"jenkinsfile":"pipeline { agent any stages { stage('A') { steps { sh 'true' } } } }"}`

	send := func(auth string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send(""))
	assert.Equal(t, http.StatusUnauthorized, send("Bearer wrong"))
	assert.Equal(t, http.StatusOK, send("Bearer "+testToken))
}

func TestAuthDisabledWithEmptyToken(t *testing.T) {
	s := newTestServer(t, realConverter(), nil, "")
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(`{"jenkinsfile":"pipeline {}"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
