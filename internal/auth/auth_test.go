package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolportal/internal/model"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "school-portal"
)

func TestIssueAndParse(t *testing.T) {
	perms := &model.PermissionSet{ManageEvents: true}
	pair, err := Issue(Identity{Subject: "u1", Role: "teacher", Username: "mr.das", Permissions: perms},
		testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(pair.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "teacher", claims.Role)
	assert.Equal(t, perms, claims.Permissions)
	assert.False(t, claims.Refresh)

	refresh, err := Parse(pair.RefreshToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.True(t, refresh.Refresh)

	_, err = Parse(pair.AccessToken, "other-key", testIssuer)
	assert.Error(t, err)
	_, err = Parse(pair.AccessToken, testKey, "someone-else")
	assert.Error(t, err)
}

func TestCan(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		cap    Capability
		want   bool
	}{
		{name: "admin passes everything", claims: Claims{Role: "admin"}, cap: CapTransport, want: true},
		{name: "student is read only", claims: Claims{Role: "student"}, cap: CapAnnouncements, want: false},
		{name: "teacher without permissions", claims: Claims{Role: "teacher"}, cap: CapEvents, want: false},
		{name: "teacher with flag", claims: Claims{Role: "teacher", Permissions: &model.PermissionSet{ManageEvents: true}}, cap: CapEvents, want: true},
		{name: "teacher with other flag", claims: Claims{Role: "teacher", Permissions: &model.PermissionSet{ManageEvents: true}}, cap: CapStudents, want: false},
		{name: "teacher with full admin", claims: Claims{Role: "teacher", Permissions: &model.PermissionSet{FullAdminAccess: true}}, cap: CapTeachers, want: true},
		{name: "teacher results via view all", claims: Claims{Role: "teacher", Permissions: &model.PermissionSet{ViewAllResults: true}}, cap: CapResults, want: true},
		{name: "teacher transport needs full admin", claims: Claims{Role: "teacher", Permissions: &model.PermissionSet{ManageStudents: true}}, cap: CapTransport, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.claims.Can(tt.cap))
		})
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/events", Bearer(testKey, testIssuer), Require(CapEvents), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/admin", Bearer(testKey, testIssuer), RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	token := func(id Identity) string {
		pair, err := Issue(id, testIssuer, testKey, time.Minute, time.Hour)
		require.NoError(t, err)
		return pair.AccessToken
	}
	teacher := token(Identity{Subject: "t", Role: "teacher", Permissions: &model.PermissionSet{ManageEvents: true}})
	student := token(Identity{Subject: "s", Role: "student"})
	refreshPair, err := Issue(Identity{Subject: "a", Role: "admin"}, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		code   int
	}{
		{name: "missing token", path: "/events", code: http.StatusUnauthorized},
		{name: "garbage token", path: "/events", header: "Bearer nope", code: http.StatusUnauthorized},
		{name: "refresh token rejected", path: "/admin", header: "Bearer " + refreshPair.RefreshToken, code: http.StatusUnauthorized},
		{name: "teacher with flag", path: "/events", header: "Bearer " + teacher, code: http.StatusNoContent},
		{name: "student forbidden", path: "/events", header: "Bearer " + student, code: http.StatusForbidden},
		{name: "teacher not admin", path: "/admin", header: "Bearer " + teacher, code: http.StatusForbidden},
		{name: "admin role", path: "/admin", header: "Bearer " + refreshPair.AccessToken, code: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}
