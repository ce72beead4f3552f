package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newWhitelistRouter(t *testing.T, entries []string) *gin.Engine {
	t.Helper()
	networks, err := ParseNetworks(entries)
	require.NoError(t, err)
	r := gin.New()
	r.Use(IPWhitelist(networks))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func ping(r *gin.Engine, ip string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Real-IP", ip)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestIPWhitelist_Empty_AllowsAll(t *testing.T) {
	r := newWhitelistRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "1.2.3.4:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIPWhitelist_SingleIPs(t *testing.T) {
	r := newWhitelistRouter(t, []string{"10.0.0.1", " 10.0.0.2 "})
	assert.Equal(t, http.StatusOK, ping(r, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, ping(r, "10.0.0.2"))
	assert.Equal(t, http.StatusForbidden, ping(r, "10.0.0.3"))
}

func TestIPWhitelist_CIDR(t *testing.T) {
	r := newWhitelistRouter(t, []string{"192.168.1.77/24", "::1"})
	assert.Equal(t, http.StatusOK, ping(r, "192.168.1.1"))
	assert.Equal(t, http.StatusOK, ping(r, "192.168.1.254"))
	assert.Equal(t, http.StatusOK, ping(r, "::1"))
	assert.Equal(t, http.StatusForbidden, ping(r, "192.168.2.1"))
}

func TestParseNetworks_Invalid(t *testing.T) {
	_, err := ParseNetworks([]string{"not-an-ip"})
	assert.Error(t, err)
	_, err = ParseNetworks([]string{"10.0.0.0/99"})
	assert.Error(t, err)

	n, err := ParseNetworks([]string{"", "  "})
	require.NoError(t, err)
	assert.Empty(t, n)
}
