package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommatch/distance"
	"roommatch/engine"
	"roommatch/identity"
	"roommatch/logging"
	"roommatch/middleware"
	"roommatch/models"
	"roommatch/presence"
	"roommatch/store"
	"roommatch/unread"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetJWTSecret("handler-test-secret")
}

type testEnv struct {
	router    *gin.Engine
	engine    *engine.Engine
	profiles  *store.MemoryProfiles
	messaging *store.MemoryMessaging
	subs      *store.MemorySubscriptions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewRealClock()
	env := &testEnv{
		profiles:  store.NewMemoryProfiles(),
		messaging: store.NewMemoryMessaging(clock),
		subs:      store.NewMemorySubscriptions(),
	}
	e, err := engine.New(engine.Options{
		Profiles:   env.profiles,
		Messaging:  env.messaging,
		Pins:       store.NewMemoryPins(clock),
		Presence:   presence.NewMemoryStore(clock),
		Watermarks: unread.NewMemoryStore(),
		Distance:   distance.NewEstimator(nil, 0, logging.Discard()),
		Clock:      clock,
		Logger:     logging.Discard(),
	})
	require.NoError(t, err)
	env.engine = e
	t.Cleanup(func() { e.Stop(context.Background()) })

	SetEngine(e)
	SetPushSubscriptions(env.subs)
	SetImageUploader(nil)
	SetVAPIDPublicKey("")
	SetLogger(logging.Discard())

	r := gin.New()
	r.GET("/api/vapid-public-key", GetVapidPublicKey)
	api := r.Group("/api", middleware.JWTAuthMiddleware())
	api.GET("/matches", GetMatches)
	api.POST("/survey", SubmitSurvey)
	api.GET("/me", GetMyProfile)
	api.PUT("/me", UpdateMyProfile)
	api.GET("/user/:id", GetUser)
	api.POST("/upload-photo", UploadPhoto)
	api.POST("/pins", AddPin)
	api.DELETE("/pins", RemovePin)
	api.GET("/pins", GetPins)
	api.GET("/conversations/:otherId", GetConversation)
	api.POST("/conversations/:id/read", MarkConversationRead)
	api.POST("/message", SendMessage)
	api.GET("/messages/:conversationId", GetMessages)
	api.GET("/unread", GetUnread)
	api.POST("/typing", SetTyping)
	api.POST("/presence/online", SetOnline)
	api.POST("/presence/offline", SetOffline)
	api.POST("/presence/heartbeat", Heartbeat)
	api.GET("/presence/:id", GetPresence)
	api.POST("/subscribe", SubscribePush)
	env.router = r
	return env
}

// user returns the canonical id and a bearer token for subject.
func user(t *testing.T, subject string) (string, string) {
	t.Helper()
	token, err := middleware.IssueToken(subject, time.Hour)
	require.NoError(t, err)
	return identity.ProfileID(subject), token
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (env *testEnv) seed(t *testing.T, p models.Profile) {
	t.Helper()
	require.NoError(t, env.profiles.Put(context.Background(), p))
}

func validSurvey(name string) map[string]any {
	return map[string]any{
		"name":     name,
		"age":      21,
		"location": "Austin, TX",
		"major":    "Physics",
		"answers": []map[string]any{
			{"questionId": "noise", "answerText": "quiet"},
			{"questionId": "sleep", "answerText": "early"},
			{"questionId": "hobbies", "answerText": "I love hiking and cooking"},
		},
	}
}

func TestRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmitSurvey(t *testing.T) {
	env := newTestEnv(t)
	alice, token := user(t, "alice@example.com")

	w := env.do(t, http.MethodPost, "/api/survey", token, validSurvey("Alice"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, alice, body["id"])
	assert.Equal(t, "Alice", body["name"])

	stored, err := env.profiles.Get(context.Background(), alice)
	require.NoError(t, err)
	assert.Len(t, stored.Answers, 3)
	createdAt := stored.CreatedAt

	w = env.do(t, http.MethodPost, "/api/survey", token, validSurvey("Alice B"))
	require.Equal(t, http.StatusOK, w.Code)
	stored, err = env.profiles.Get(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice B", stored.Name)
	assert.Equal(t, createdAt, stored.CreatedAt, "resubmitting keeps the creation time")
}

func TestSubmitSurvey_Invalid(t *testing.T) {
	env := newTestEnv(t)
	_, token := user(t, "alice@example.com")

	tooYoung := validSurvey("Alice")
	tooYoung["age"] = 12
	w := env.do(t, http.MethodPost, "/api/survey", token, tooYoung)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	badAnswer := validSurvey("Alice")
	badAnswer["answers"] = []map[string]any{{"questionId": "noise", "answerText": "deafening"}}
	w = env.do(t, http.MethodPost, "/api/survey", token, badAnswer)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileEndpoints(t *testing.T) {
	env := newTestEnv(t)
	alice, token := user(t, "alice@example.com")

	w := env.do(t, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.seed(t, models.Profile{ID: alice, Name: "Alice", Location: "Austin, TX", Coordinates: &models.Coordinates{Lat: 30.27, Lng: -97.74}})
	env.seed(t, models.Profile{ID: "bob", Name: "Bob"})

	w = env.do(t, http.MethodPut, "/api/me", token, map[string]any{"location": "Dallas, TX", "instagramHandle": "@alice"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored, err := env.profiles.Get(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, "Dallas, TX", stored.Location)
	assert.Nil(t, stored.Coordinates, "moving drops stale coordinates")
	assert.Equal(t, "alice", stored.InstagramHandle)

	w = env.do(t, http.MethodPut, "/api/me", token, map[string]any{"age": 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/user/bob", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bob", decode(t, w)["name"])

	w = env.do(t, http.MethodGet, "/api/user/nobody", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodGet, "/api/user/"+models.PlaceholderPrefix+"1", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetMatches(t *testing.T) {
	env := newTestEnv(t)
	alice, token := user(t, "alice@example.com")
	env.seed(t, models.Profile{ID: alice, Name: "Alice", Location: "Austin, TX",
		Answers: []models.Answer{{QuestionID: "noise", AnswerText: "quiet"}}})
	env.seed(t, models.Profile{ID: "bob", Name: "Bob", Location: "Austin, TX",
		Answers: []models.Answer{{QuestionID: "noise", AnswerText: "quiet"}}})
	env.seed(t, models.Profile{ID: "carol", Name: "Carol", Location: "Seattle, WA",
		Answers: []models.Answer{{QuestionID: "noise", AnswerText: "loud"}}})

	w := env.do(t, http.MethodGet, "/api/matches", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Matches      []models.MatchRecord `json:"matches"`
		Count        int                  `json:"count"`
		Placeholders bool                 `json:"placeholders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	assert.False(t, body.Placeholders)
	assert.Equal(t, "bob", body.Matches[0].Profile.ID)
	for _, m := range body.Matches {
		assert.NotEqual(t, alice, m.Profile.ID)
	}
}

func TestGetMatches_PlaceholdersWhenStoreDown(t *testing.T) {
	env := newTestEnv(t)
	_, token := user(t, "alice@example.com")
	env.profiles.SetUnavailable(errors.New("mongo down"))

	w := env.do(t, http.MethodGet, "/api/matches", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["placeholders"])
	assert.EqualValues(t, 5, body["count"])
}

func TestPins(t *testing.T) {
	env := newTestEnv(t)
	alice, token := user(t, "alice@example.com")
	env.seed(t, models.Profile{ID: alice, Name: "Alice"})
	env.seed(t, models.Profile{ID: "bob", Name: "Bob"})

	w := env.do(t, http.MethodPost, "/api/pins", token, map[string]any{"targetUserId": "bob"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/pins", token, map[string]any{"targetUserId": alice})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/api/pins", token, map[string]any{"targetUserId": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/pins", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Pins []models.Pin `json:"pins"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Pins, 1)
	assert.Equal(t, "bob", list.Pins[0].TargetID)

	w = env.do(t, http.MethodDelete, "/api/pins", token, map[string]any{"targetUserId": "bob"})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/api/pins", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Pins)
}

func TestMessaging(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := user(t, "alice@example.com")
	bob, bobToken := user(t, "bob@example.com")
	_, carolToken := user(t, "carol@example.com")
	convID := models.ConversationID(alice, bob)

	// alice opens the conversation first so bob's message counts as unread
	w := env.do(t, http.MethodGet, "/api/conversations/"+bob, aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, convID, decode(t, w)["conversationId"])

	w = env.do(t, http.MethodPost, "/api/message", bobToken, map[string]any{"receiverId": alice, "text": "  hey alice  "})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sent := decode(t, w)
	assert.Equal(t, true, sent["success"])
	assert.NotEmpty(t, sent["id"])
	assert.Equal(t, convID, sent["conversationId"])

	w = env.do(t, http.MethodGet, "/api/messages/"+convID, aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "hey alice", history.Messages[0].Text)

	w = env.do(t, http.MethodGet, "/api/messages/"+convID, carolToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/unread", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = env.do(t, http.MethodPost, "/api/conversations/"+convID+"/read", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/api/unread", aliceToken, nil)
	assert.EqualValues(t, 0, decode(t, w)["total"])

	w = env.do(t, http.MethodPost, "/api/conversations/"+convID+"/read", carolToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUnreadCountedBeforeConversationOpened(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := user(t, "alice@example.com")
	bob, bobToken := user(t, "bob@example.com")
	env.seed(t, models.Profile{ID: alice, Name: "Alice"})
	env.seed(t, models.Profile{ID: bob, Name: "Bob"})

	w := env.do(t, http.MethodGet, "/api/matches", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/message", bobToken, map[string]any{"receiverId": alice, "text": "is the room free?"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/unread", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = env.do(t, http.MethodGet, "/api/matches", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Matches []models.MatchRecord `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Matches, 1)
	assert.Equal(t, 1, body.Matches[0].UnreadCount)
}

func TestSendMessage_Rejects(t *testing.T) {
	env := newTestEnv(t)
	alice, token := user(t, "alice@example.com")

	cases := []map[string]any{
		{"receiverId": "bob", "text": "   "},
		{"receiverId": alice, "text": "hi me"},
		{"receiverId": models.PlaceholderPrefix + "2", "text": "hi"},
		{"text": "no receiver"},
	}
	for _, body := range cases {
		w := env.do(t, http.MethodPost, "/api/message", token, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestSendMessage_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	_, token := user(t, "alice@example.com")
	env.messaging.FailSends(errors.New("write refused"))

	w := env.do(t, http.MethodPost, "/api/message", token, map[string]any{"receiverId": "bob", "text": "hi"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestTyping(t *testing.T) {
	env := newTestEnv(t)
	alice, token := user(t, "alice@example.com")

	states := make(chan models.TypingState, 4)
	unsub := env.messaging.SubscribeTyping(models.ConversationID(alice, "bob"), func(st models.TypingState) {
		states <- st
	})
	defer unsub()

	w := env.do(t, http.MethodPost, "/api/typing", token, map[string]any{"otherId": "bob", "typing": true})
	require.Equal(t, http.StatusOK, w.Code)
	select {
	case st := <-states:
		assert.True(t, st.Typing)
		assert.Equal(t, alice, st.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("typing state not published")
	}

	w = env.do(t, http.MethodPost, "/api/typing", token, map[string]any{"otherId": "bob", "typing": false})
	require.Equal(t, http.StatusOK, w.Code)
	select {
	case st := <-states:
		assert.False(t, st.Typing)
	case <-time.After(2 * time.Second):
		t.Fatal("typing clear not published")
	}
}

func TestPresence(t *testing.T) {
	env := newTestEnv(t)
	alice, token := user(t, "alice@example.com")

	w := env.do(t, http.MethodGet, "/api/presence/nobody", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["online"])

	w = env.do(t, http.MethodPost, "/api/presence/online", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/api/presence/heartbeat", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/presence/"+alice, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["online"])

	// the stored flag is cleared but the recent heartbeat still counts
	w = env.do(t, http.MethodPost, "/api/presence/offline", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec, err := env.engine.Presence().Get(context.Background(), alice)
	require.NoError(t, err)
	assert.False(t, rec.Online)
}

func TestPush(t *testing.T) {
	env := newTestEnv(t)
	alice, token := user(t, "alice@example.com")

	w := env.do(t, http.MethodGet, "/api/vapid-public-key", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	SetVAPIDPublicKey("BPublicKey")
	w = env.do(t, http.MethodGet, "/api/vapid-public-key", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BPublicKey", decode(t, w)["publicKey"])

	w = env.do(t, http.MethodPost, "/api/subscribe", token, map[string]any{
		"endpoint": "https://push.example/abc",
		"keys":     map[string]any{"p256dh": "key", "auth": "secret"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	subs, err := env.subs.All(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, alice, subs[0].UserID)
	assert.Equal(t, "https://push.example/abc", subs[0].Endpoint)

	w = env.do(t, http.MethodPost, "/api/subscribe", token, map[string]any{"endpoint": "https://push.example/abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakeUploader struct {
	got []byte
	err error
}

func (f *fakeUploader) Upload(_ context.Context, file io.Reader, profileID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	f.got = b
	return "https://img.example/" + profileID + ".jpg", nil
}

func photoRequest(t *testing.T, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("photo", "me.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload-photo", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadPhoto(t *testing.T) {
	env := newTestEnv(t)
	alice, token := user(t, "alice@example.com")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, photoRequest(t, token))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	up := &fakeUploader{}
	SetImageUploader(up)

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, photoRequest(t, token))
	assert.Equal(t, http.StatusNotFound, w.Code, "no profile yet")

	env.seed(t, models.Profile{ID: alice, Name: "Alice"})
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, photoRequest(t, token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []byte("jpeg-bytes"), up.got)

	stored, err := env.profiles.Get(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/"+alice+".jpg", stored.ImageRef)

	up.err = errors.New("cloud down")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, photoRequest(t, token))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
