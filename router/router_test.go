package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/database"
	"github.com/MEmshousen/CodeRED2025-404NotFound/model"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services/realtime"
	"github.com/MEmshousen/CodeRED2025-404NotFound/services/storage"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/auth"
	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/middleware"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const testServiceKey = "test-service-key"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	t       *testing.T
	app     *fiber.App
	store   *database.MemoryStore
	hub     *realtime.Hub
	jwt     *auth.JWTManager
	teacher string
	student string
	other   string
}

func newTestServer(t *testing.T, publisher realtime.Publisher) *testServer {
	t.Helper()

	log := zap.NewNop()
	store := database.NewMemoryStore()
	hub := realtime.NewHub(8, log)
	if publisher == nil {
		publisher = hub
	}
	jwtManager := auth.NewJWTManager(auth.JWTConfig{Secret: "router-test-secret-0123456789", Expiry: time.Hour})

	app := fiber.New()
	SetupRoutes(app, Dependencies{
		Store:         store,
		JWTManager:    jwtManager,
		Hub:           hub,
		Publisher:     publisher,
		Blobs:         storage.NewMemoryBlobStore(),
		ServiceAPIKey: testServiceKey,
		Security:      middleware.SecurityConfig{AllowedOrigins: "*"},
		Log:           log,
	})

	s := &testServer{t: t, app: app, store: store, hub: hub, jwt: jwtManager}
	s.teacher = s.token(10, "prof@example.edu", "TEACHER")
	s.student = s.token(20, "student@example.edu", "STUDENT")
	s.other = s.token(30, "other@example.edu", "student")
	return s
}

func (s *testServer) token(id uint, email, role string) string {
	s.t.Helper()
	token, err := s.jwt.GenerateAccessToken(id, email, email, role)
	if err != nil {
		s.t.Fatalf("GenerateAccessToken: %v", err)
	}
	return token
}

func (s *testServer) do(method, path, token string, body interface{}, header ...string) (int, envelope) {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("Marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return s.send(req)
}

func (s *testServer) send(req *http.Request) (int, envelope) {
	s.t.Helper()

	resp, err := s.app.Test(req, -1)
	if err != nil {
		s.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			s.t.Fatalf("%s %s: invalid JSON %q", req.Method, req.URL.Path, raw)
		}
	}
	return resp.StatusCode, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}

// createCourse creates a course as the teacher and enrolls the student.
func (s *testServer) createCourse() uint {
	s.t.Helper()

	status, env := s.do(http.MethodPost, "/api/v1/courses", s.teacher, map[string]string{"code": "CS101", "name": "Intro"})
	if status != http.StatusCreated {
		s.t.Fatalf("create course: status %d", status)
	}
	var course model.Course
	decode(s.t, env.Data, &course)

	status, _ = s.do(http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/join", course.ID), s.student, nil)
	if status != http.StatusOK {
		s.t.Fatalf("join course: status %d", status)
	}
	return course.ID
}

func TestRequiresAuthentication(t *testing.T) {
	s := newTestServer(t, nil)

	status, env := s.do(http.MethodGet, "/api/v1/courses", "", nil)
	if status != http.StatusUnauthorized || env.Success {
		t.Fatalf("expected 401, got %d", status)
	}

	status, env = s.do(http.MethodGet, "/api/v1/me", s.student, nil)
	if status != http.StatusOK {
		t.Fatalf("me: status %d", status)
	}
	var me struct {
		ID        uint       `json:"id"`
		Role      string     `json:"role"`
		ExpiresAt *time.Time `json:"token_expires_at"`
	}
	decode(t, env.Data, &me)
	if me.ID != 20 || me.Role != "STUDENT" {
		t.Fatalf("unexpected profile: %+v", me)
	}
	if me.ExpiresAt == nil || !me.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected a future token expiry, got %v", me.ExpiresAt)
	}
}

func TestStudentCannotCreateCourse(t *testing.T) {
	s := newTestServer(t, nil)

	status, env := s.do(http.MethodPost, "/api/v1/courses", s.student, map[string]string{"code": "X1", "name": "Nope"})
	if status != http.StatusForbidden || env.Error == nil || env.Error.Code != "FORBIDDEN" {
		t.Fatalf("expected 403 FORBIDDEN, got %d %+v", status, env.Error)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	s := newTestServer(t, nil)
	courseID := s.createCourse()
	path := fmt.Sprintf("/api/v1/courses/%d/join", courseID)

	for i := 0; i < 2; i++ {
		status, env := s.do(http.MethodPost, path, s.student, nil)
		if status != http.StatusOK {
			t.Fatalf("join #%d: status %d", i+1, status)
		}
		var res struct {
			Joined  bool `json:"joined"`
			Created bool `json:"created"`
		}
		decode(t, env.Data, &res)
		if !res.Joined || res.Created {
			t.Fatalf("join #%d: expected joined without a new enrollment, got %+v", i+1, res)
		}
	}

	status, env := s.do(http.MethodGet, fmt.Sprintf("/api/v1/courses/%d", courseID), s.teacher, nil)
	if status != http.StatusOK {
		t.Fatalf("get course: status %d", status)
	}
	var detail struct {
		ID              uint  `json:"id"`
		EnrollmentCount int64 `json:"enrollment_count"`
	}
	decode(t, env.Data, &detail)
	if detail.ID != courseID || detail.EnrollmentCount != 1 {
		t.Fatalf("expected 1 enrollment, got %+v", detail)
	}

	status, _ = s.do(http.MethodPost, "/api/v1/courses/999/join", s.student, nil)
	if status != http.StatusNotFound {
		t.Fatalf("join missing course: expected 404, got %d", status)
	}
}

func TestPainPointAuthorHiddenFromTeachers(t *testing.T) {
	s := newTestServer(t, nil)
	courseID := s.createCourse()

	status, env := s.do(http.MethodPost, "/api/v1/pain-points", s.student, map[string]interface{}{
		"course": courseID,
		"title":  "Recursion makes no sense",
		"topic":  "recursion",
	})
	if status != http.StatusCreated {
		t.Fatalf("create pain point: status %d", status)
	}
	var created map[string]json.RawMessage
	decode(t, env.Data, &created)
	if string(created["author"]) != "20" {
		t.Fatalf("student should see themselves as author, got %s", created["author"])
	}

	status, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/pain-points?course=%d", courseID), s.teacher, nil)
	if status != http.StatusOK {
		t.Fatalf("teacher list: status %d", status)
	}
	var teacherView []map[string]json.RawMessage
	decode(t, env.Data, &teacherView)
	if len(teacherView) != 1 {
		t.Fatalf("expected 1 pain point, got %d", len(teacherView))
	}
	if _, ok := teacherView[0]["author"]; ok {
		t.Fatalf("author key must be absent for teachers: %v", teacherView[0])
	}

	var id uint
	decode(t, created["id"], &id)
	status, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/pain-points/%d", id), s.teacher, nil)
	if status != http.StatusOK {
		t.Fatalf("teacher retrieve: status %d", status)
	}
	var single map[string]json.RawMessage
	decode(t, env.Data, &single)
	if _, ok := single["author"]; ok {
		t.Fatal("author key must be absent for teachers on retrieve")
	}

	stored, err := s.store.GetPainPoint(context.Background(), id)
	if err != nil || stored.AuthorID == nil || *stored.AuthorID != 20 {
		t.Fatalf("author must still be stored, got %+v (%v)", stored, err)
	}
}

func TestPainPointPublishesToCourseRoom(t *testing.T) {
	s := newTestServer(t, nil)
	courseID := s.createCourse()

	sub := s.hub.Subscribe(realtime.RoomName(courseID))
	defer sub.Close()

	status, env := s.do(http.MethodPost, "/api/v1/pain-points", s.student, map[string]interface{}{"course": courseID, "title": "Loops"})
	if status != http.StatusCreated {
		t.Fatalf("create pain point: status %d", status)
	}
	var created struct {
		ID uint `json:"id"`
	}
	decode(t, env.Data, &created)

	select {
	case ev := <-sub.C:
		if ev.Type != realtime.EventConfusionUpdate || ev.CourseID != courseID || ev.PainPointID != created.ID {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestPainPointWriteSurvivesPublishFailure(t *testing.T) {
	failing := realtime.PublisherFunc(func(context.Context, realtime.Event) error {
		return errors.New("broker unreachable")
	})
	s := newTestServer(t, failing)
	courseID := s.createCourse()

	status, _ := s.do(http.MethodPost, "/api/v1/pain-points", s.student, map[string]interface{}{"course": courseID, "title": "Pointers"})
	if status != http.StatusCreated {
		t.Fatalf("expected 201 despite publish failure, got %d", status)
	}
	if n, _ := s.store.CountPainPoints(context.Background(), courseID); n != 1 {
		t.Fatalf("expected 1 stored pain point, got %d", n)
	}
}

func TestCourseAnalytics(t *testing.T) {
	s := newTestServer(t, nil)
	courseID := s.createCourse()

	status, env := s.do(http.MethodGet, "/api/v1/analytics/course", s.teacher, nil)
	if status != http.StatusBadRequest || env.Error == nil || env.Error.Message != "Missing course ID" {
		t.Fatalf("expected 400 Missing course ID, got %d %+v", status, env.Error)
	}

	author := uint(20)
	old := time.Now().Add(-2 * time.Hour)
	for i := 0; i < 4; i++ {
		pp := &model.PainPoint{CourseID: courseID, AuthorID: &author, Title: "old", Topic: "history", CreatedAt: old}
		if err := s.store.CreatePainPoint(context.Background(), pp); err != nil {
			t.Fatalf("CreatePainPoint: %v", err)
		}
	}
	for _, topic := range []string{"recursion", "recursion", "loops"} {
		status, _ := s.do(http.MethodPost, "/api/v1/pain-points", s.student, map[string]interface{}{
			"course": courseID, "title": "stuck", "topic": topic,
		})
		if status != http.StatusCreated {
			t.Fatalf("create pain point: status %d", status)
		}
	}

	status, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/analytics/course?course=%d", courseID), s.teacher, nil)
	if status != http.StatusOK {
		t.Fatalf("analytics: status %d", status)
	}
	var body map[string]json.RawMessage
	decode(t, env.Data, &body)
	if string(body["course_id"]) != fmt.Sprint(courseID) {
		t.Fatalf("unexpected course_id %s", body["course_id"])
	}
	if string(body["count_last_15m"]) != "3" {
		t.Fatalf("expected count_last_15m 3, got %s", body["count_last_15m"])
	}
	if string(body["top_topics"]) != `[["recursion",2],["loops",1]]` {
		t.Fatalf("unexpected top_topics %s", body["top_topics"])
	}
	if string(body["total_submissions"]) != "7" {
		t.Fatalf("expected total_submissions 7, got %s", body["total_submissions"])
	}
	var start, end time.Time
	if err := json.Unmarshal(body["window_start"], &start); err != nil {
		t.Fatalf("window_start: %v (%s)", err, body["window_start"])
	}
	if err := json.Unmarshal(body["window_end"], &end); err != nil {
		t.Fatalf("window_end: %v (%s)", err, body["window_end"])
	}
	if end.Sub(start) != services.ConfusionWindow {
		t.Fatalf("expected a %v window, got [%v, %v]", services.ConfusionWindow, start, end)
	}

	status, _ = s.do(http.MethodGet, fmt.Sprintf("/api/v1/analytics/course?course=%d", courseID), s.other, nil)
	if status != http.StatusForbidden {
		t.Fatalf("non-member analytics: expected 403, got %d", status)
	}
}

func TestSnapshots(t *testing.T) {
	s := newTestServer(t, nil)
	courseID := s.createCourse()

	status, env := s.do(http.MethodPost, "/api/v1/analytics/snapshots", s.teacher, map[string]interface{}{
		"course":  courseID,
		"summary": "Quiet lecture",
	})
	if status != http.StatusCreated {
		t.Fatalf("create snapshot: status %d", status)
	}
	var snap model.ConfusionSnapshot
	decode(t, env.Data, &snap)
	if snap.Count != 0 || snap.Summary != "Quiet lecture" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	status, env = s.do(http.MethodPost, "/api/v1/analytics/snapshots", s.teacher, map[string]interface{}{
		"course":       courseID,
		"window_start": "2025-01-01T10:00:00Z",
		"window_end":   "2025-01-01T09:00:00Z",
	})
	if status != http.StatusUnprocessableEntity || env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("inverted window: expected 422 VALIDATION_ERROR, got %d %+v", status, env.Error)
	}

	status, _ = s.do(http.MethodPost, "/api/v1/analytics/snapshots", s.student, map[string]interface{}{"course": courseID})
	if status != http.StatusForbidden {
		t.Fatalf("student snapshot: expected 403, got %d", status)
	}

	status, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/analytics/snapshots?course=%d", courseID), s.student, nil)
	if status != http.StatusOK || env.Count == nil || *env.Count != 1 {
		t.Fatalf("list snapshots: status %d count %v", status, env.Count)
	}
}

func TestStudyPacketLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	courseID := s.createCourse()

	status, env := s.do(http.MethodPost, "/api/v1/study-packets", s.teacher, map[string]interface{}{
		"course":  courseID,
		"status":  "SENT",
		"payload": map[string]string{"injected": "yes"},
	})
	if status != http.StatusCreated {
		t.Fatalf("create packet: status %d", status)
	}
	var packet model.StudyPacket
	decode(t, env.Data, &packet)
	if packet.Status != model.StudyPacketPending || string(packet.Payload) != "{}" {
		t.Fatalf("client-supplied status or payload leaked: %+v", packet)
	}

	readyPath := fmt.Sprintf("/internal/study-packets/%d/ready", packet.ID)
	if status, _ := s.do(http.MethodPost, readyPath, "", map[string]string{"raw_output": "{}"}); status != http.StatusUnauthorized {
		t.Fatalf("ready without service key: expected 401, got %d", status)
	}

	raw := "Here is the packet:\n```json\n{\"flashcards\": [\"base case\"]}\n```"
	status, env = s.do(http.MethodPost, readyPath, "", map[string]string{"raw_output": raw}, middleware.ServiceKeyHeader, testServiceKey)
	if status != http.StatusOK {
		t.Fatalf("ready: status %d", status)
	}
	decode(t, env.Data, &packet)
	if packet.Status != model.StudyPacketReady || string(packet.Payload) != `{"flashcards":["base case"]}` {
		t.Fatalf("unexpected ready packet: %s %s", packet.Status, packet.Payload)
	}

	sentPath := fmt.Sprintf("/internal/study-packets/%d/sent", packet.ID)
	if status, _ := s.do(http.MethodPost, sentPath, "", nil, middleware.ServiceKeyHeader, testServiceKey); status != http.StatusConflict {
		t.Fatalf("send before approval: expected 409, got %d", status)
	}

	approvePath := fmt.Sprintf("/api/v1/study-packets/%d/approve", packet.ID)
	if status, _ := s.do(http.MethodPost, approvePath, s.student, nil); status != http.StatusForbidden {
		t.Fatalf("student approve: expected 403, got %d", status)
	}
	status, env = s.do(http.MethodPost, approvePath, s.teacher, nil)
	if status != http.StatusOK {
		t.Fatalf("approve: status %d", status)
	}
	decode(t, env.Data, &packet)
	if packet.Status != model.StudyPacketApproved || packet.ApprovedAt == nil {
		t.Fatalf("unexpected approved packet: %+v", packet)
	}

	status, env = s.do(http.MethodPost, sentPath, "", nil, middleware.ServiceKeyHeader, testServiceKey)
	if status != http.StatusOK {
		t.Fatalf("sent: status %d", status)
	}
	decode(t, env.Data, &packet)
	if packet.Status != model.StudyPacketSent {
		t.Fatalf("expected SENT, got %s", packet.Status)
	}

	status, env = s.do(http.MethodGet, "/api/v1/study-packets", s.student, nil)
	if status != http.StatusOK || env.Count == nil || *env.Count != 1 {
		t.Fatalf("student list: status %d count %v", status, env.Count)
	}
	status, _ = s.do(http.MethodGet, fmt.Sprintf("/api/v1/study-packets/%d", packet.ID), s.other, nil)
	if status != http.StatusNotFound {
		t.Fatalf("outsider retrieve: expected 404, got %d", status)
	}
}

func TestMaterialUpload(t *testing.T) {
	s := newTestServer(t, nil)
	courseID := s.createCourse()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("title", "Syllabus")
	part, err := w.CreateFormFile("file", "syllabus.txt")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write([]byte("week 1: loops"))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/materials", courseID), &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.teacher)
	status, env := s.send(req)
	if status != http.StatusCreated {
		t.Fatalf("upload: status %d %+v", status, env.Error)
	}
	var material model.Material
	decode(t, env.Data, &material)
	if material.Title != "Syllabus" || material.CourseID != courseID {
		t.Fatalf("unexpected material: %+v", material)
	}

	status, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/materials/%d/download", courseID, material.ID), s.student, nil)
	if status != http.StatusOK {
		t.Fatalf("download: status %d", status)
	}
	var link struct {
		URL string `json:"url"`
	}
	decode(t, env.Data, &link)
	if link.URL == "" {
		t.Fatal("empty download url")
	}
}

func TestStreamChecksAccessFirst(t *testing.T) {
	s := newTestServer(t, nil)
	courseID := s.createCourse()

	status, env := s.do(http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/stream?access_token=%s", courseID, s.other), "", nil)
	if status != http.StatusNotFound || env.Success {
		t.Fatalf("outsider stream: expected 404, got %d", status)
	}
	if n := s.hub.Subscribers(realtime.RoomName(courseID)); n != 0 {
		t.Fatalf("rejected stream left %d subscribers", n)
	}
}
