package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/yoockh/voiceinterview/internal/api/middleware"
	"github.com/yoockh/voiceinterview/internal/models"
	"github.com/yoockh/voiceinterview/internal/sessionstore"
	"github.com/yoockh/voiceinterview/internal/utils"
	"github.com/yoockh/voiceinterview/internal/workers"
)

func init() { gin.SetMode(gin.TestMode) }

const testUser = "9f1c2a34-5b6d-4e7f-8a9b-0c1d2e3f4a5b"

// asUser stands in for JWTAuth.
func asUser(id string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id != "" {
			c.Set(middleware.CtxUserID, id)
		}
		c.Next()
	}
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("bad json %q: %v", w.Body.String(), err)
	}
}

type fakeDispatcher struct {
	got  *models.WebhookEvent
	resp *models.WebhookResponse
	err  error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, ev *models.WebhookEvent) (*models.WebhookResponse, error) {
	f.got = ev
	return f.resp, f.err
}

func TestWebhookDecodesBareEvent(t *testing.T) {
	d := &fakeDispatcher{resp: models.Ack()}
	r := gin.New()
	r.POST("/vapi/webhook", NewVapiHandler(d).Webhook)

	w := do(r, http.MethodPost, "/vapi/webhook", `{"type":"transcript","call":{"id":"c1"},"transcript":"hi","role":"user"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	if d.got == nil || d.got.Type != models.EventTranscript || d.got.CorrelationID() != "c1" {
		t.Fatalf("event = %+v", d.got)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["received"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestWebhookUnwrapsMessageEnvelope(t *testing.T) {
	d := &fakeDispatcher{resp: models.Ack()}
	r := gin.New()
	r.POST("/vapi/webhook", NewVapiHandler(d).Webhook)

	w := do(r, http.MethodPost, "/vapi/webhook", `{"message":{"type":"end-of-call-report","call":{"id":"c9"},"recordingUrl":"https://x/y.wav"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if d.got.Type != models.EventEndOfCallReport || d.got.CorrelationID() != "c9" || d.got.RecordingURL != "https://x/y.wav" {
		t.Fatalf("event = %+v", d.got)
	}
}

func TestWebhookRejectsBadJSON(t *testing.T) {
	d := &fakeDispatcher{}
	r := gin.New()
	r.POST("/vapi/webhook", NewVapiHandler(d).Webhook)

	w := do(r, http.MethodPost, "/vapi/webhook", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if d.got != nil {
		t.Fatal("dispatcher called on bad body")
	}
}

func TestWebhookMapsDispatchErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
		code utils.Code
	}{
		{"missing call id", utils.E(utils.CodeInvalidArgument, "Dispatcher.Dispatch", "No call ID", utils.ErrMissingCallID), http.StatusBadRequest, utils.CodeInvalidArgument},
		{"generation failure", utils.E(utils.CodeUpstream, "QuestionGenerator.Generate", "bad output", utils.ErrGenerationFailure), http.StatusBadGateway, utils.CodeUpstream},
		{"bare not found", utils.ErrNotFound, http.StatusNotFound, utils.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/vapi/webhook", NewVapiHandler(&fakeDispatcher{err: tc.err}).Webhook)

			w := do(r, http.MethodPost, "/vapi/webhook", `{"type":"function-call"}`)
			if w.Code != tc.want {
				t.Fatalf("status = %d", w.Code)
			}
			var e APIError
			decode(t, w, &e)
			if e.Code != tc.code {
				t.Fatalf("code = %s", e.Code)
			}
		})
	}
}

type fakeInterviews struct {
	saved     *models.InterviewRecord
	listUser  string
	listLimit int
	rows      []models.InterviewRecord
	err       error
}

func (f *fakeInterviews) Save(_ context.Context, rec *models.InterviewRecord) (*models.InterviewRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.saved = rec
	out := *rec
	out.ID = "11111111-2222-3333-4444-555555555555"
	return &out, nil
}

func (f *fakeInterviews) ListByUser(_ context.Context, userID string, limit int) ([]models.InterviewRecord, error) {
	f.listUser, f.listLimit = userID, limit
	return f.rows, f.err
}

func interviewRouter(svc *fakeInterviews, user string) *gin.Engine {
	h := NewInterviewHandler(svc)
	r := gin.New()
	r.Use(asUser(user))
	r.POST("/interviews/save", h.Save)
	r.GET("/interviews/history", h.History)
	return r
}

func TestInterviewSave(t *testing.T) {
	svc := &fakeInterviews{}
	r := interviewRouter(svc, testUser)

	body := `{"role":"Backend Engineer","interviewType":"technical","difficulty":"medium","numQuestions":2,
		"questions":[{"question":"q1","type":"technical"}],"answers":[{"question":"q1","answer":"a1"}],
		"overallScore":80,"strengths":["clear"],"durationSeconds":300,"vapiCallId":"call-1"}`
	w := do(r, http.MethodPost, "/interviews/save", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	if svc.saved.UserID != testUser || svc.saved.Role != "Backend Engineer" || svc.saved.Status != models.RecordCompleted {
		t.Fatalf("saved = %+v", svc.saved)
	}
	if *svc.saved.OverallScore != 80 || *svc.saved.VapiCallID != "call-1" || len(svc.saved.Questions.Data()) != 1 {
		t.Fatalf("saved = %+v", svc.saved)
	}

	var resp struct {
		Success   bool                   `json:"success"`
		Interview models.InterviewRecord `json:"interview"`
	}
	decode(t, w, &resp)
	if !resp.Success || resp.Interview.ID == "" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestInterviewSaveRejects(t *testing.T) {
	cases := []struct {
		name string
		user string
		body string
		want int
	}{
		{"no user", "", `{"role":"x"}`, http.StatusUnauthorized},
		{"no role", testUser, `{"interviewType":"technical"}`, http.StatusBadRequest},
		{"score out of range", testUser, `{"role":"x","overallScore":120}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeInterviews{}
			w := do(interviewRouter(svc, tc.user), http.MethodPost, "/interviews/save", tc.body)
			if w.Code != tc.want {
				t.Fatalf("status = %d body=%s", w.Code, w.Body)
			}
			if svc.saved != nil {
				t.Fatal("service called")
			}
		})
	}
}

func TestInterviewHistory(t *testing.T) {
	svc := &fakeInterviews{rows: []models.InterviewRecord{{ID: "a", Role: "sre"}}}
	r := interviewRouter(svc, testUser)

	w := do(r, http.MethodGet, "/interviews/history?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if svc.listUser != testUser || svc.listLimit != 5 {
		t.Fatalf("list(%q, %d)", svc.listUser, svc.listLimit)
	}
	var resp struct {
		Interviews []models.InterviewRecord `json:"interviews"`
	}
	decode(t, w, &resp)
	if len(resp.Interviews) != 1 || resp.Interviews[0].Role != "sre" {
		t.Fatalf("resp = %+v", resp)
	}

	if w := do(r, http.MethodGet, "/interviews/history?limit=ten", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", w.Code)
	}
}

type fakeQuestions struct {
	got models.InterviewParams
	out []models.Question
	err error
}

func (f *fakeQuestions) Generate(_ context.Context, p models.InterviewParams) ([]models.Question, error) {
	f.got = p
	return f.out, f.err
}

func TestQuestionGenerate(t *testing.T) {
	q := &fakeQuestions{out: []models.Question{{Text: "Explain CAP.", Type: models.QuestionTechnical}}}
	r := gin.New()
	r.POST("/questions/generate", NewQuestionHandler(q).Generate)

	w := do(r, http.MethodPost, "/questions/generate", `{"role":"dev","interviewType":"technical","difficulty":"easy","numQuestions":"1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	if q.got.NumQuestions != 1 || q.got.Role != "dev" {
		t.Fatalf("params = %+v", q.got)
	}
	var resp struct {
		Questions []models.Question `json:"questions"`
	}
	decode(t, w, &resp)
	if len(resp.Questions) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestQuestionGenerateMissingParams(t *testing.T) {
	q := &fakeQuestions{err: utils.E(utils.CodeInvalidArgument, "QuestionGenerator.Generate", "missing required parameters: role", utils.ErrMissingParameters)}
	r := gin.New()
	r.POST("/questions/generate", NewQuestionHandler(q).Generate)

	if w := do(r, http.MethodPost, "/questions/generate", `{"numQuestions":3}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCallSession(t *testing.T) {
	store := sessionstore.NewMemoryStore(time.Hour)
	defer store.Close()
	if _, err := store.GetOrCreate(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	h := NewCallHandler(store, nil)
	r := gin.New()
	r.GET("/calls/:call_id/session", h.Session)
	r.GET("/calls/:call_id/transcript", h.Transcript)

	w := do(r, http.MethodGet, "/calls/c1/session", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var sess models.Session
	decode(t, w, &sess)
	if sess.CallID != "c1" || sess.Stage != models.StageCollectingParams {
		t.Fatalf("session = %+v", sess)
	}

	if w := do(r, http.MethodGet, "/calls/nope/session", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/calls/c1/transcript", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("transcript without mongo status = %d", w.Code)
	}
}

func TestCallStatusWS(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := sessionstore.NewMemoryStore(time.Hour)
	defer store.Close()
	ctx := context.Background()
	if _, err := store.Update(ctx, "c1", func(s *models.Session) error {
		s.UserID = testUser
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	h := NewWSHandler(store, rdb, nil)
	r := gin.New()
	r.GET("/ws/calls/:call_id", asUser(testUser), h.CallStatusWS)
	r.GET("/other/ws/calls/:call_id", asUser("someone-else"), h.CallStatusWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	if w := do(r, http.MethodGet, "/other/ws/calls/c1", ""); w.Code != http.StatusForbidden {
		t.Fatalf("foreign user status = %d", w.Code)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/calls/c1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var snap models.StatusUpdate
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Event != "snapshot" || snap.Stage != models.StageCollectingParams {
		t.Fatalf("snapshot = %+v", snap)
	}

	// the snapshot is only sent once the subscription is live, so one
	// publish must reach this socket
	payload, _ := json.Marshal(models.StatusUpdate{Type: "status", CallID: "c1", Stage: models.StageInterviewing, Event: "questions_generated"})
	n, err := rdb.Publish(ctx, workers.StatusChannel("c1"), payload).Result()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("subscribers = %d, want 1", n)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(msg, []byte(`"questions_generated"`)) {
		t.Fatalf("msg = %s", msg)
	}
}
