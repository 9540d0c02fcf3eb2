package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"freshchain-ledger-server/internal/auth"
	"freshchain-ledger-server/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var member = common.HexToAddress("0x604b9CF5B8B460cbF4af690eF311DbB98025385B")

func newRouter(issuer *auth.TokenIssuer, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := []gin.HandlerFunc{Authenticate(issuer)}
	if len(roles) > 0 {
		chain = append(chain, Authorize(roles...))
	}
	chain = append(chain, func(c *gin.Context) {
		addr, ok := Caller(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, addr.Hex())
	})
	r.GET("/", chain...)
	return r
}

func do(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	r := newRouter(issuer)
	token, err := issuer.Generate("m@freshchain.local", member, auth.AccountRoleMember)
	require.NoError(t, err)

	w := do(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, member.Hex(), w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, token).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer junk").Code)
}

func TestAuthenticate_RejectsTokenWithoutCaller(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	r := newRouter(issuer)
	token, err := issuer.Generate("z@freshchain.local", ledger.ZeroAddress, auth.AccountRoleMember)
	require.NoError(t, err)

	w := do(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), ledger.ZeroAddress.Hex())
}

func TestAuthorize(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	r := newRouter(issuer, auth.AccountRoleAdmin)

	memberToken, err := issuer.Generate("m@freshchain.local", member, auth.AccountRoleMember)
	require.NoError(t, err)
	adminToken, err := issuer.Generate("a@freshchain.local", member, auth.AccountRoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(r, "Bearer "+memberToken).Code)
	assert.Equal(t, http.StatusOK, do(r, "Bearer "+adminToken).Code)
}
