package matches

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xyz-asif/blindmatch/internal/features/users"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// asUser authenticates as the directory user named by the X-User header
func asUser(dir *directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := primitive.ObjectIDFromHex(c.GetHeader("X-User"))
		if err == nil {
			if u, ok := dir.users[id]; ok {
				c.Set("user", u)
				c.Set("userID", u.ID.Hex())
			}
		}
		c.Next()
	}
}

func setupRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), NewHandler(f.svc), asUser(f.dir))
	return r
}

func doJSON(r http.Handler, method, path string, as *users.User, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("X-User", as.ID.Hex())
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, into))
}

func TestHandlerFindAndChat(t *testing.T) {
	f := newFixture(t)
	r := setupRouter(f)

	w := doJSON(r, http.MethodPost, "/api/v1/matches/find", f.alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var found FindResult
	decodeData(t, w, &found)
	require.Equal(t, OutcomeMatched, found.Outcome)
	require.NotNil(t, found.Match)
	base := "/api/v1/matches/" + found.Match.ID.Hex()

	w = doJSON(r, http.MethodPost, base+"/messages", f.alice, SendMessageRequest{Text: "hi"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sentRes SendResult
	decodeData(t, w, &sentRes)
	assert.Equal(t, int64(1), sentRes.MessageCount)

	w = doJSON(r, http.MethodPost, base+"/messages", f.bob, SendMessageRequest{Text: "see http://spam.example"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(r, http.MethodGet, base+"/messages?limit=10", f.bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Total int64 `json:"total"`
		Limit int   `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 10, page.Limit)

	w = doJSON(r, http.MethodGet, base, f.carol, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPost, base+"/unmatch", f.bob, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(r, http.MethodPost, base+"/messages", f.alice, SendMessageRequest{Text: "hello?"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, base+"/unmatch", f.bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	r := setupRouter(f)

	w := doJSON(r, http.MethodGet, "/api/v1/matches", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/matches/not-an-id", f.alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/matches/find", f.alice, Filters{MinAge: 50, MaxAge: 20})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/matches", f.alice, CreateMatchRequest{PartnerID: f.alice.ID.Hex()})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlerCreateExtendAndSecretChat(t *testing.T) {
	f := newFixture(t)
	r := setupRouter(f)

	w := doJSON(r, http.MethodPost, "/api/v1/matches", f.alice, CreateMatchRequest{PartnerID: f.bob.ID.Hex()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var view View
	decodeData(t, w, &view)
	assert.Equal(t, "Night Owl", view.Partner.Alias)
	base := "/api/v1/matches/" + view.ID.Hex()

	w = doJSON(r, http.MethodGet, "/api/v1/matches", f.bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []View
	decodeData(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Quiet Fox", list[0].Partner.Alias)

	w = doJSON(r, http.MethodPost, base+"/extend", f.bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ext ExtendResult
	decodeData(t, w, &ext)
	assert.Equal(t, 50, ext.Cost)

	w = doJSON(r, http.MethodPost, base+"/secret-chat/request", f.bob, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(r, http.MethodPost, base+"/secret-chat/accept", f.alice, AcceptSecretChatRequest{Minutes: 90})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, base+"/secret-chat/accept", f.alice, AcceptSecretChatRequest{Minutes: 15})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var secret SecretChat
	decodeData(t, w, &secret)
	assert.Equal(t, SecretActive, secret.State)
	assert.Equal(t, 15, secret.Minutes)

	f.svc.cancelSecretTimer(view.ID)
}
