package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"lingua-backend/internal/logger"
	"lingua-backend/internal/middleware"
	"lingua-backend/internal/models"
	"lingua-backend/internal/services"
)

func newRequest(method, target string, body interface{}) *http.Request {
	var rd io.Reader = http.NoBody
	if body != nil {
		raw, _ := json.Marshal(body)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-1")
	return req
}

func withParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func withUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

// ─── Auth Handler Tests ───

type stubAuth struct {
	registerErr error
	loginErr    error
}

func (s *stubAuth) Register(ctx context.Context, req models.RegisterRequest) (*models.User, *models.AuthTokens, error) {
	if s.registerErr != nil {
		return nil, nil, s.registerErr
	}
	return &models.User{ID: uuid.New(), Email: req.Email, FullName: req.FullName}, &models.AuthTokens{AccessToken: "tok", ExpiresIn: 3600}, nil
}

func (s *stubAuth) Login(ctx context.Context, req models.LoginRequest) (*models.AuthTokens, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &models.AuthTokens{AccessToken: "tok", ExpiresIn: 3600}, nil
}

type stubUsers struct{}

func (stubUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return nil, pgx.ErrNoRows
}

func TestRegisterHandler_ValidInput(t *testing.T) {
	h := NewAuthHandler(&stubAuth{}, stubUsers{})
	body := map[string]string{"full_name": "Test User", "email": "test@example.com", "password": "StrongPass123!"}

	rr := httptest.NewRecorder()
	h.Register(rr, newRequest(http.MethodPost, "/api/v1/auth/register", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	var payload struct {
		User   models.User       `json:"user"`
		Tokens models.AuthTokens `json:"tokens"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.User.Email != "test@example.com" || payload.Tokens.AccessToken != "tok" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestRegisterHandler_ValidationErrorCarriesFields(t *testing.T) {
	h := NewAuthHandler(&stubAuth{registerErr: &services.ValidationError{Fields: map[string]string{"email": "Email is required"}}}, stubUsers{})

	rr := httptest.NewRecorder()
	h.Register(rr, newRequest(http.MethodPost, "/api/v1/auth/register", map[string]string{}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	apiErr := decodeError(t, rr)
	if apiErr.Code != "VALIDATION_ERROR" || apiErr.Fields["email"] == "" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if apiErr.RequestID != "req-1" {
		t.Fatalf("expected request id to be echoed, got %q", apiErr.RequestID)
	}
}

func TestRegisterHandler_MalformedBody(t *testing.T) {
	h := NewAuthHandler(&stubAuth{}, stubUsers{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader([]byte("{")))

	rr := httptest.NewRecorder()
	h.Register(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&stubAuth{loginErr: &services.UnauthorizedError{Message: "Invalid email or password"}}, stubUsers{})

	rr := httptest.NewRecorder()
	h.Login(rr, newRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "a@b.co", "password": "x"}))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestMeHandler_UnknownUser(t *testing.T) {
	h := NewAuthHandler(&stubAuth{}, stubUsers{})

	rr := httptest.NewRecorder()
	h.Me(rr, withUser(newRequest(http.MethodGet, "/api/v1/me", nil), uuid.New()))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

// ─── Error Mapping Tests ───

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&services.ValidationError{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{&services.ConflictError{Message: "taken"}, http.StatusConflict, "CONFLICT"},
		{&services.NotFoundError{Message: "gone"}, http.StatusNotFound, "NOT_FOUND"},
		{&services.UnauthorizedError{Message: "no"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{&services.ForbiddenError{Message: "no"}, http.StatusForbidden, "FORBIDDEN"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		rr := httptest.NewRecorder()
		handleServiceError(rr, newRequest(http.MethodGet, "/", nil), tc.err)
		if rr.Code != tc.status {
			t.Errorf("%T: expected status %d, got %d", tc.err, tc.status, rr.Code)
		}
		if got := decodeError(t, rr).Code; got != tc.code {
			t.Errorf("%T: expected code %s, got %s", tc.err, tc.code, got)
		}
	}
}

// ─── Presence Handler Tests ───

type stubPresence struct {
	heartbeatUser uuid.UUID
	offlineUser   uuid.UUID
	group         uuid.UUID
	writeErr      error
}

func (s *stubPresence) CheckOnlineStatus(ctx context.Context, userID, groupID uuid.UUID) models.OnlineStatus {
	return models.OnlineStatus{UserID: userID, GroupID: groupID}
}

func (s *stubPresence) Heartbeat(ctx context.Context, userID, groupID uuid.UUID) error {
	s.heartbeatUser, s.group = userID, groupID
	return s.writeErr
}

func (s *stubPresence) MarkOffline(ctx context.Context, userID, groupID uuid.UUID) error {
	s.offlineUser, s.group = userID, groupID
	return s.writeErr
}

func TestPresenceHandler_StatusDefaultsOffline(t *testing.T) {
	h := NewPresenceHandler(&stubPresence{})
	groupID, userID := uuid.New(), uuid.New()

	req := withParams(newRequest(http.MethodGet, "/", nil), "groupID", groupID.String(), "userID", userID.String())
	rr := httptest.NewRecorder()
	h.Status(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var status models.OnlineStatus
	if err := json.NewDecoder(rr.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.IsOnline || status.LastSeenAt != nil || status.UserID != userID {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestPresenceHandler_WritesCallerRow(t *testing.T) {
	stub := &stubPresence{}
	h := NewPresenceHandler(stub)
	caller, groupID := uuid.New(), uuid.New()

	rr := httptest.NewRecorder()
	h.Heartbeat(rr, withUser(withParams(newRequest(http.MethodPost, "/", nil), "groupID", groupID.String()), caller))
	if rr.Code != http.StatusOK || stub.heartbeatUser != caller || stub.group != groupID {
		t.Fatalf("heartbeat not written for caller: code=%d stub=%+v", rr.Code, stub)
	}

	rr = httptest.NewRecorder()
	h.Offline(rr, withUser(withParams(newRequest(http.MethodPost, "/", nil), "groupID", groupID.String()), caller))
	if rr.Code != http.StatusOK || stub.offlineUser != caller {
		t.Fatalf("offline not written for caller: code=%d stub=%+v", rr.Code, stub)
	}
}

func TestPresenceHandler_InvalidGroup(t *testing.T) {
	h := NewPresenceHandler(&stubPresence{})

	rr := httptest.NewRecorder()
	h.Heartbeat(rr, withParams(newRequest(http.MethodPost, "/", nil), "groupID", "not-a-uuid"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

// ─── Chat Handler Tests ───

type stubChat struct {
	afterSeq int64
	limit    int
	err      error
}

func (s *stubChat) CreateGroup(ctx context.Context, creatorID uuid.UUID, req models.CreateRoomRequest) (*models.ChatRoom, error) {
	return &models.ChatRoom{ID: uuid.New(), Kind: models.RoomKindGroup, Name: req.Name, CreatedBy: creatorID}, nil
}

func (s *stubChat) OpenDirect(ctx context.Context, userID, otherID uuid.UUID) (*models.ChatRoom, error) {
	return &models.ChatRoom{ID: uuid.New(), Kind: models.RoomKindDirect}, nil
}

func (s *stubChat) ListRooms(ctx context.Context, userID uuid.UUID) ([]*models.ChatRoom, error) {
	return []*models.ChatRoom{}, nil
}

func (s *stubChat) Send(ctx context.Context, userID, roomID uuid.UUID, req models.SendMessageRequest) (*models.ChatMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.ChatMessage{ID: uuid.New(), RoomID: roomID, SenderID: userID, ClientID: req.ClientID, Seq: 1, Body: req.Body}, nil
}

func (s *stubChat) History(ctx context.Context, userID, roomID uuid.UUID, afterSeq int64, limit int) ([]models.ChatMessage, error) {
	s.afterSeq, s.limit = afterSeq, limit
	if s.err != nil {
		return nil, s.err
	}
	return []models.ChatMessage{{RoomID: roomID, Seq: afterSeq + 1}}, nil
}

func TestChatHandler_MessagesAfterSeq(t *testing.T) {
	stub := &stubChat{}
	h := NewChatHandler(stub)
	roomID := uuid.New()

	req := withParams(newRequest(http.MethodGet, "/rooms/x/messages?after_seq=41&limit=10", nil), "id", roomID.String())
	rr := httptest.NewRecorder()
	h.Messages(rr, withUser(req, uuid.New()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if stub.afterSeq != 41 || stub.limit != 10 {
		t.Fatalf("expected after_seq=41 limit=10, got %d %d", stub.afterSeq, stub.limit)
	}
}

func TestChatHandler_InvalidAfterSeq(t *testing.T) {
	h := NewChatHandler(&stubChat{})

	req := withParams(newRequest(http.MethodGet, "/rooms/x/messages?after_seq=-3", nil), "id", uuid.NewString())
	rr := httptest.NewRecorder()
	h.Messages(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestChatHandler_SendToForeignRoom(t *testing.T) {
	h := NewChatHandler(&stubChat{err: &services.NotFoundError{Message: "Room not found"}})

	body := models.SendMessageRequest{ClientID: "c1", Body: "hi"}
	req := withParams(newRequest(http.MethodPost, "/", body), "id", uuid.NewString())
	rr := httptest.NewRecorder()
	h.Send(rr, withUser(req, uuid.New()))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

// ─── Tutor Handler Tests ───

type stubTutor struct {
	err  error
	last models.TutorRequest
}

func (s *stubTutor) Respond(ctx context.Context, req models.TutorRequest) (string, error) {
	s.last = req
	if s.err != nil {
		return "", s.err
	}
	return "Great! What else do you like?", nil
}

type stubTracker struct {
	session    models.SpeechSession
	open       bool
	utterances []string
	replies    []string
	closed     bool
}

func (s *stubTracker) Open(ctx context.Context, userID uuid.UUID) (*models.SpeechSession, error) {
	s.session = models.SpeechSession{ID: uuid.New(), UserID: userID}
	s.open = true
	sess := s.session
	return &sess, nil
}

func (s *stubTracker) Get(id uuid.UUID) (models.SpeechSession, bool) {
	if !s.open || id != s.session.ID {
		return models.SpeechSession{}, false
	}
	return s.session, true
}

func (s *stubTracker) RecordUtterance(ctx context.Context, id uuid.UUID, text string) (models.SpeechSession, error) {
	s.utterances = append(s.utterances, text)
	s.session.MessagesCount++
	return s.session, nil
}

func (s *stubTracker) RecordReply(id uuid.UUID, text string) {
	s.replies = append(s.replies, text)
}

func (s *stubTracker) History(id uuid.UUID) []models.ConversationTurn {
	var turns []models.ConversationTurn
	for _, u := range s.utterances {
		turns = append(turns, models.ConversationTurn{Role: models.RoleUser, Content: u})
	}
	return turns
}

func (s *stubTracker) Close(ctx context.Context, id uuid.UUID) *models.SpeechSession {
	if !s.open {
		return nil
	}
	s.open = false
	s.closed = true
	sess := s.session
	return &sess
}

func TestTutorHandler_RespondAIError(t *testing.T) {
	h := NewTutorHandler(&stubTutor{err: errors.New("quota")}, &stubTracker{}, logger.NewNop())

	rr := httptest.NewRecorder()
	h.Respond(rr, newRequest(http.MethodPost, "/", models.TutorRequest{Text: "hello"}))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if code := decodeError(t, rr).Code; code != "AI_ERROR" {
		t.Fatalf("expected AI_ERROR, got %s", code)
	}
}

func TestTutorHandler_SessionTurnAndClose(t *testing.T) {
	tutor := &stubTutor{}
	tracker := &stubTracker{}
	h := NewTutorHandler(tutor, tracker, logger.NewNop())
	owner := uuid.New()

	rr := httptest.NewRecorder()
	h.OpenSession(rr, withUser(newRequest(http.MethodPost, "/", nil), owner))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	id := tracker.session.ID.String()

	rr = httptest.NewRecorder()
	req := withUser(withParams(newRequest(http.MethodPost, "/", map[string]string{"text": "I am a student"}), "id", id), owner)
	h.Utterance(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if len(tutor.last.ConversationHistory) != 0 {
		t.Fatalf("current utterance must not be sent as history: %+v", tutor.last.ConversationHistory)
	}
	if len(tracker.replies) != 1 {
		t.Fatalf("expected the reply to be recorded, got %v", tracker.replies)
	}

	rr = httptest.NewRecorder()
	h.CloseSession(rr, withUser(withParams(newRequest(http.MethodPost, "/", nil), "id", id), owner))
	if rr.Code != http.StatusOK || !tracker.closed {
		t.Fatalf("expected session to close, got %d", rr.Code)
	}
}

func TestTutorHandler_ForeignSessionIsNotFound(t *testing.T) {
	tracker := &stubTracker{}
	h := NewTutorHandler(&stubTutor{}, tracker, logger.NewNop())
	_, _ = tracker.Open(context.Background(), uuid.New())

	rr := httptest.NewRecorder()
	h.CloseSession(rr, withUser(withParams(newRequest(http.MethodPost, "/", nil), "id", tracker.session.ID.String()), uuid.New()))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
	if tracker.closed {
		t.Fatalf("another user's session must not be closed")
	}
}

// ─── Course Handler Tests ───

type stubCourses struct {
	course    *models.Course
	lesson    *models.Lesson
	completed map[uuid.UUID]bool
	created   *models.Lesson
}

func (s *stubCourses) Create(ctx context.Context, c *models.Course) error {
	c.ID = uuid.New()
	s.course = c
	return nil
}

func (s *stubCourses) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	if s.course == nil || s.course.ID != id {
		return nil, pgx.ErrNoRows
	}
	return s.course, nil
}

func (s *stubCourses) List(ctx context.Context, level string) ([]*models.Course, error) {
	return []*models.Course{}, nil
}

func (s *stubCourses) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubCourses) CreateLesson(ctx context.Context, l *models.Lesson) error {
	l.ID = uuid.New()
	s.created = l
	return nil
}

func (s *stubCourses) GetLesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	if s.lesson == nil || s.lesson.ID != id {
		return nil, pgx.ErrNoRows
	}
	return s.lesson, nil
}

func (s *stubCourses) ListLessons(ctx context.Context, courseID uuid.UUID) ([]*models.Lesson, error) {
	return []*models.Lesson{}, nil
}

func (s *stubCourses) DeleteLesson(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubCourses) CompleteLesson(ctx context.Context, userID, lessonID uuid.UUID, score int) (bool, error) {
	if s.completed == nil {
		s.completed = map[uuid.UUID]bool{}
	}
	if s.completed[userID] {
		return false, nil
	}
	s.completed[userID] = true
	return true, nil
}

type stubJobs struct {
	created *models.Job
	status  string
}

func (s *stubJobs) Create(ctx context.Context, j *models.Job) error {
	j.ID = uuid.New()
	s.created = j
	return nil
}

func (s *stubJobs) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	s.status = status
	return nil
}

type stubQueue struct {
	err    error
	queued []*models.Job
}

func (s *stubQueue) Enqueue(ctx context.Context, job *models.Job) error {
	if s.err != nil {
		return s.err
	}
	s.queued = append(s.queued, job)
	return nil
}

type stubXP struct {
	total int
}

func (s *stubXP) AwardXP(ctx context.Context, userID uuid.UUID, source string, amount int) error {
	s.total += amount
	return nil
}

func newCourseFixture(owner uuid.UUID) (*CourseHandler, *stubCourses, *stubJobs, *stubQueue, *stubXP) {
	courses := &stubCourses{course: &models.Course{ID: uuid.New(), CreatedBy: owner, Level: "beginner"}}
	courses.lesson = &models.Lesson{ID: uuid.New(), CourseID: courses.course.ID, XPReward: 20}
	jobs, queue, xp := &stubJobs{}, &stubQueue{}, &stubXP{}
	return NewCourseHandler(courses, nil, jobs, queue, xp, logger.NewNop()), courses, jobs, queue, xp
}

func TestCourseHandler_CompleteLessonAwardsXPOnce(t *testing.T) {
	user := uuid.New()
	h, courses, _, _, xp := newCourseFixture(uuid.New())
	id := courses.lesson.ID.String()

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.CompleteLesson(rr, withUser(withParams(newRequest(http.MethodPost, "/", map[string]int{"score": 90}), "id", id), user))
		if rr.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected status %d, got %d", i, http.StatusOK, rr.Code)
		}
	}
	if xp.total != 20 {
		t.Fatalf("expected 20 XP after two completions, got %d", xp.total)
	}
}

func TestCourseHandler_CompleteLessonWithoutBody(t *testing.T) {
	h, courses, _, _, _ := newCourseFixture(uuid.New())

	rr := httptest.NewRecorder()
	h.CompleteLesson(rr, withUser(withParams(newRequest(http.MethodPost, "/", nil), "id", courses.lesson.ID.String()), uuid.New()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestCourseHandler_CreateLessonFillsTemplate(t *testing.T) {
	owner := uuid.New()
	h, courses, _, _, _ := newCourseFixture(owner)

	body := models.CreateLessonRequest{Title: "At the cafe", GrammarFocus: "no-such-focus"}
	rr := httptest.NewRecorder()
	h.CreateLesson(rr, withUser(withParams(newRequest(http.MethodPost, "/", body), "id", courses.course.ID.String()), owner))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	if courses.created.GrammarFocus != "general" || courses.created.Content == "" || len(courses.created.Vocabulary) == 0 {
		t.Fatalf("template defaults not applied: %+v", courses.created)
	}
}

func TestCourseHandler_CreateLessonRequiresOwner(t *testing.T) {
	h, courses, _, _, _ := newCourseFixture(uuid.New())

	body := models.CreateLessonRequest{Title: "At the cafe"}
	rr := httptest.NewRecorder()
	h.CreateLesson(rr, withUser(withParams(newRequest(http.MethodPost, "/", body), "id", courses.course.ID.String()), uuid.New()))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
	if courses.created != nil {
		t.Fatalf("lesson must not be created for non-owner")
	}
}

func TestCourseHandler_GenerateLessonQueuesJob(t *testing.T) {
	owner := uuid.New()
	h, courses, jobs, queue, _ := newCourseFixture(owner)

	body := models.GenerateLessonRequest{Topic: "travel", GrammarFocus: "past_simple"}
	rr := httptest.NewRecorder()
	h.GenerateLesson(rr, withUser(withParams(newRequest(http.MethodPost, "/", body), "id", courses.course.ID.String()), owner))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rr.Code)
	}
	if len(queue.queued) != 1 || queue.queued[0].Type != models.JobTypeLessonGeneration {
		t.Fatalf("expected one lesson job queued, got %+v", queue.queued)
	}
	if jobs.created.ReferenceID != courses.course.ID {
		t.Fatalf("job must reference the course")
	}
	var cfg models.GenerateLessonRequest
	if err := json.Unmarshal(jobs.created.ConfigJSON, &cfg); err != nil || cfg.Level != "beginner" {
		t.Fatalf("expected course level in job config, got %s (%v)", jobs.created.ConfigJSON, err)
	}
}

func TestCourseHandler_GenerateLessonQueueDown(t *testing.T) {
	owner := uuid.New()
	h, courses, jobs, queue, _ := newCourseFixture(owner)
	queue.err = errors.New("redis down")

	body := models.GenerateLessonRequest{Topic: "travel"}
	rr := httptest.NewRecorder()
	h.GenerateLesson(rr, withUser(withParams(newRequest(http.MethodPost, "/", body), "id", courses.course.ID.String()), owner))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if jobs.status != "failed" {
		t.Fatalf("expected job marked failed, got %q", jobs.status)
	}
}

// ─── Job Handler Tests ───

type stubJobReader struct {
	job       *models.Job
	cancelled bool
}

func (s *stubJobReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if s.job == nil || s.job.ID != id {
		return nil, pgx.ErrNoRows
	}
	return s.job, nil
}

func (s *stubJobReader) Cancel(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	return s.cancelled, nil
}

func TestJobHandler_CancelRunningJobConflicts(t *testing.T) {
	owner := uuid.New()
	job := &models.Job{ID: uuid.New(), UserID: owner, Status: "processing"}
	h := NewJobHandler(&stubJobReader{job: job})

	rr := httptest.NewRecorder()
	h.CancelJob(rr, withUser(withParams(newRequest(http.MethodPost, "/", nil), "id", job.ID.String()), owner))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rr.Code)
	}
}

func TestJobHandler_GetForeignJob(t *testing.T) {
	job := &models.Job{ID: uuid.New(), UserID: uuid.New()}
	h := NewJobHandler(&stubJobReader{job: job})

	rr := httptest.NewRecorder()
	h.GetJob(rr, withUser(withParams(newRequest(http.MethodGet, "/", nil), "id", job.ID.String()), uuid.New()))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
}
