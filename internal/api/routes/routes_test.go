package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"freshchain-ledger-server/config"
	"freshchain-ledger-server/internal/auth"
	"freshchain-ledger-server/internal/database"
	"freshchain-ledger-server/internal/ledger"
	"freshchain-ledger-server/internal/models"
	"freshchain-ledger-server/internal/s3"
	"freshchain-ledger-server/internal/socket"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin       = common.HexToAddress("0x93988b68Df34CBB8117BA2c834E52c9c4439DDa7")
	producer    = common.HexToAddress("0x604b9CF5B8B460cbF4af690eF311DbB98025385B")
	transporter = common.HexToAddress("0x4648a5A15D44B0eB8C2C2D4F3b5A2D30b5F5B4E1")
	retailer    = common.HexToAddress("0x8E4f5a6d2F0Bb0cC1D9c7e0a7A3b4C5d6E7f8091")
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (m *memUsers) Create(_ context.Context, u models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := m.users[key]; ok {
		return models.User{}, database.ErrDuplicateEmail
	}
	m.users[key] = u
	return u, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return models.User{}, database.ErrUserNotFound
	}
	return u, nil
}

type fakeS3 struct{ keys []string }

func (f *fakeS3) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	f.keys = append(f.keys, *in.Key)
	_, _ = io.Copy(io.Discard, in.Body)
	return &awss3.PutObjectOutput{}, nil
}

type testServer struct {
	router *gin.Engine
	ledger *ledger.Ledger
	issuer *auth.TokenIssuer
	users  *memUsers
	deps   Dependencies
}

func newTestServer(t *testing.T, uploader *s3.Uploader) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := socket.NewHub()
	l, err := ledger.New(admin, ledger.WithPublisher(hub))
	require.NoError(t, err)

	deps := Dependencies{
		Ledger:     l,
		Users:      &memUsers{users: map[string]models.User{}},
		Issuer:     auth.NewTokenIssuer("test-secret", time.Hour),
		Hub:        hub,
		S3Uploader: uploader,
	}
	return &testServer{
		router: SetupRouter(config.ServerConfig{AllowedOrigins: []string{"*"}}, deps),
		ledger: l,
		issuer: deps.Issuer,
		users:  deps.Users.(*memUsers),
		deps:   deps,
	}
}

func (s *testServer) token(t *testing.T, addr ledger.Address, accountRole string) string {
	t.Helper()
	token, err := s.issuer.Generate(strings.ToLower(addr.Hex())+"@freshchain.local", addr, accountRole)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

// registerAll grants the ledger roles used by the tests.
func (s *testServer) registerAll(t *testing.T) {
	t.Helper()
	adminToken := s.token(t, admin, auth.AccountRoleAdmin)
	for role, addr := range map[string]ledger.Address{
		"producers":    producer,
		"transporters": transporter,
		"retailers":    retailer,
	} {
		w, _ := s.do(t, http.MethodPost, "/api/v1/registry/"+role, adminToken, gin.H{"address": addr.Hex()})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func lower(a ledger.Address) string { return strings.ToLower(a.Hex()) }

func TestBatchLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	s.registerAll(t)

	p := s.token(t, producer, auth.AccountRoleMember)
	tr := s.token(t, transporter, auth.AccountRoleMember)
	r := s.token(t, retailer, auth.AccountRoleMember)

	w, body := s.do(t, http.MethodPost, "/api/v1/batches", p, gin.H{"batchId": 1, "productName": "Tomatoes", "quantity": 100})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	event := body["event"].(map[string]any)
	assert.Equal(t, "BatchCreated", event["name"])

	w, _ = s.do(t, http.MethodPost, "/api/v1/batches/1/sensor-data", tr, gin.H{"temperature": -10, "humidity": 0, "location": "Bursa"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = s.do(t, http.MethodPost, "/api/v1/batches/1/transfer", p, gin.H{"newOwner": transporter.Hex()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = s.do(t, http.MethodPost, "/api/v1/batches/1/transfer", tr, gin.H{"newOwner": retailer.Hex()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(t, http.MethodPost, "/api/v1/batches/1/arrival", r, gin.H{"passedInspection": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(t, http.MethodGet, "/api/v1/batches/1/history", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history ledger.BatchHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Equal(t, retailer, history.Batch.CurrentOwner)
	assert.Equal(t, producer, history.Batch.Creator)
	assert.True(t, history.Batch.ArrivedAtRetailer)
	assert.False(t, history.Batch.PassedInspection)
	require.Len(t, history.Sensors, 1)
	assert.Equal(t, int64(-10), history.Sensors[0].Temperature)
	require.Len(t, history.Ownerships, 2)
	assert.Equal(t, transporter, history.Ownerships[1].From)

	w, body = s.do(t, http.MethodGet, "/api/v1/batches/1/counts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["sensorCount"])
	assert.Equal(t, float64(2), body["transferCount"])
}

func TestReads(t *testing.T) {
	s := newTestServer(t, nil)
	s.registerAll(t)

	_, body := s.do(t, http.MethodGet, "/api/v1/owner", "", nil)
	assert.Equal(t, lower(admin), body["owner"])

	_, body = s.do(t, http.MethodGet, "/api/v1/registry/producer/"+producer.Hex(), "", nil)
	assert.Equal(t, true, body["member"])
	_, body = s.do(t, http.MethodGet, "/api/v1/registry/retailers/"+producer.Hex(), "", nil)
	assert.Equal(t, false, body["member"])

	_, body = s.do(t, http.MethodGet, "/api/v1/accounts/"+admin.Hex()+"/roles", "", nil)
	assert.Equal(t, true, body["isOwner"])
	assert.Empty(t, body["roles"])

	// unknown batches read as absent, not as errors
	w, body := s.do(t, http.MethodGet, "/api/v1/batches/99", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["exists"])
	w, body = s.do(t, http.MethodGet, "/api/v1/batches/99/history", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, body["sensors"])

	w, _ = s.do(t, http.MethodGet, "/api/v1/batches/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(t, http.MethodGet, "/api/v1/registry/auditor/"+producer.Hex(), "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)
	s.registerAll(t)
	p := s.token(t, producer, auth.AccountRoleMember)
	tr := s.token(t, transporter, auth.AccountRoleMember)

	w, _ := s.do(t, http.MethodPost, "/api/v1/batches", p, gin.H{"batchId": 1, "productName": "Tomatoes", "quantity": 100})
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		name   string
		path   string
		token  string
		body   any
		status int
		kind   string
	}{
		{"non-owner registers", "/api/v1/registry/producers", p, gin.H{"address": retailer.Hex()}, http.StatusForbidden, "AUTHORIZATION"},
		{"duplicate batch", "/api/v1/batches", p, gin.H{"batchId": 1, "productName": "Pears", "quantity": 1}, http.StatusConflict, "CONFLICT"},
		{"transporter creates", "/api/v1/batches", tr, gin.H{"batchId": 2, "productName": "Pears", "quantity": 1}, http.StatusForbidden, "AUTHORIZATION"},
		{"blank product", "/api/v1/batches", p, gin.H{"batchId": 2, "productName": "   ", "quantity": 1}, http.StatusBadRequest, "VALIDATION"},
		{"transfer unknown batch", "/api/v1/batches/7/transfer", p, gin.H{"newOwner": retailer.Hex()}, http.StatusNotFound, "NOT_FOUND"},
		{"transfer by non-owner", "/api/v1/batches/1/transfer", tr, gin.H{"newOwner": retailer.Hex()}, http.StatusForbidden, "AUTHORIZATION"},
		{"temperature too high", "/api/v1/batches/1/sensor-data", tr, gin.H{"temperature": 41, "humidity": 10, "location": "Bursa"}, http.StatusBadRequest, "VALIDATION"},
		{"missing humidity", "/api/v1/batches/1/sensor-data", tr, gin.H{"temperature": 4, "location": "Bursa"}, http.StatusBadRequest, "VALIDATION"},
		{"bad new owner", "/api/v1/batches/1/transfer", p, gin.H{"newOwner": "0x123"}, http.StatusBadRequest, "VALIDATION"},
		{"arrival by producer", "/api/v1/batches/1/arrival", p, gin.H{"passedInspection": true}, http.StatusForbidden, "AUTHORIZATION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := s.do(t, http.MethodPost, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.kind, body["kind"])
		})
	}

	// nothing above changed the batch
	assert.Equal(t, producer, s.ledger.GetBatch(1).CurrentOwner)
	assert.Equal(t, ledger.Counts{}, s.ledger.GetCounts(1))

	w, _ = s.do(t, http.MethodPost, "/api/v1/batches", "", gin.H{"batchId": 3, "productName": "Plums", "quantity": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginAndAdmin(t *testing.T) {
	s := newTestServer(t, nil)
	hash, err := auth.HashPassword("ownerpassword")
	require.NoError(t, err)
	_, err = s.users.Create(context.Background(), models.User{
		Email: "admin@freshchain.local", Password: hash, Address: admin.Hex(),
		AccountRole: auth.AccountRoleAdmin, Status: models.UserStatusActive,
	})
	require.NoError(t, err)

	w, _ := s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "admin@freshchain.local", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "nobody@freshchain.local", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "admin@freshchain.local", "password": "ownerpassword"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	adminToken := body["token"].(string)
	assert.NotContains(t, w.Body.String(), hash)

	newUser := gin.H{"email": "producer@freshchain.local", "name": "Producer", "password": "producerpw", "address": producer.Hex()}
	w, _ = s.do(t, http.MethodPost, "/api/v1/admin/users", s.token(t, producer, auth.AccountRoleMember), newUser)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = s.do(t, http.MethodPost, "/api/v1/admin/users", adminToken, newUser)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, auth.AccountRoleMember, body["user"].(map[string]any)["accountRole"])

	w, _ = s.do(t, http.MethodPost, "/api/v1/admin/users", adminToken, newUser)
	assert.Equal(t, http.StatusConflict, w.Code)

	// the new account acts on the ledger with its bound address
	w, body = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "producer@freshchain.local", "password": "producerpw"})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodPost, "/api/v1/registry/producers", adminToken, gin.H{"address": producer.Hex()})
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = s.do(t, http.MethodPost, "/api/v1/batches", body["token"].(string), gin.H{"batchId": 5, "productName": "Figs", "quantity": 2})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestExportHistory(t *testing.T) {
	s := newTestServer(t, nil)
	s.registerAll(t)
	p := s.token(t, producer, auth.AccountRoleMember)

	w, _ := s.do(t, http.MethodPost, "/api/v1/batches/1/export", p, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	fake := &fakeS3{}
	s = newTestServer(t, &s3.Uploader{Client: fake, Bucket: "traces", CloudFrontDomain: "cdn.freshchain.local"})
	s.registerAll(t)
	p = s.token(t, producer, auth.AccountRoleMember)

	w, _ = s.do(t, http.MethodPost, "/api/v1/batches/1/export", p, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/batches", p, gin.H{"batchId": 1, "productName": "Tomatoes", "quantity": 100})
	require.Equal(t, http.StatusCreated, w.Code)
	w, body := s.do(t, http.MethodPost, "/api/v1/batches/1/export", p, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, fake.keys, 1)
	assert.True(t, strings.HasPrefix(fake.keys[0], "exports/batch-1/"))
	assert.Equal(t, "https://cdn.freshchain.local/"+fake.keys[0], body["url"])
}

func TestWebSocketStream(t *testing.T) {
	s := newTestServer(t, nil)
	s.registerAll(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"?batchId=1&token="+s.token(t, retailer, auth.AccountRoleMember), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.deps.Hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	p := s.token(t, producer, auth.AccountRoleMember)
	w, _ := s.do(t, http.MethodPost, "/api/v1/batches", p, gin.H{"batchId": 2, "productName": "Pears", "quantity": 1})
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = s.do(t, http.MethodPost, "/api/v1/batches", p, gin.H{"batchId": 1, "productName": "Tomatoes", "quantity": 100})
	require.Equal(t, http.StatusCreated, w.Code)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var got struct {
		Name string         `json:"name"`
		Args map[string]any `json:"args"`
	}
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "BatchCreated", got.Name)
	assert.Equal(t, float64(1), got.Args["batchId"])
	assert.Equal(t, lower(producer), got.Args["producer"])
}
