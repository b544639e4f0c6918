package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/chatapi"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/queue"
	"github.com/akshatgg/vibe-monitor-back/internal/rca/telemetry"
)

type fakeSessionStore struct{}

func (fakeSessionStore) CreateSession(ctx context.Context, s domain.Session) (domain.Session, error) {
	s.ID = "sess-1"
	return s, nil
}
func (fakeSessionStore) LoadSession(ctx context.Context, workspace, id string) (domain.Session, error) {
	if id == "missing" {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return domain.Session{ID: id, Workspace: workspace}, nil
}
func (fakeSessionStore) FindByExternalThread(ctx context.Context, workspace string, origin domain.SessionOrigin, key string) (domain.Session, error) {
	return domain.Session{}, domain.ErrSessionNotFound
}
func (fakeSessionStore) UpdateTitle(ctx context.Context, workspace, id, title string) (domain.Session, error) {
	return domain.Session{ID: id, Title: title}, nil
}
func (fakeSessionStore) ListSessions(ctx context.Context, workspace string, limit, offset int) ([]domain.Session, error) {
	return []domain.Session{{ID: "sess-1", Workspace: workspace}}, nil
}
func (fakeSessionStore) DeleteSession(ctx context.Context, workspace, id string) error { return nil }

type fakeTurnStore struct{}

func (fakeTurnStore) CreateTurn(ctx context.Context, t domain.Turn) (domain.Turn, error) { return t, nil }
func (fakeTurnStore) LoadTurn(ctx context.Context, workspace, id string) (domain.Turn, error) {
	if id == "missing" {
		return domain.Turn{}, domain.ErrTurnNotFound
	}
	return domain.Turn{ID: id, Workspace: workspace, Status: domain.TurnCompleted, FinalResponse: "root cause found"}, nil
}
func (fakeTurnStore) TransitionTurn(ctx context.Context, workspace, id string, status domain.TurnStatus, finalResponse string) (domain.Turn, error) {
	return domain.Turn{ID: id, Status: status, FinalResponse: finalResponse}, nil
}
func (fakeTurnStore) ListTurnsBySession(ctx context.Context, workspace, sessionID string) ([]domain.Turn, error) {
	return nil, nil
}
func (fakeTurnStore) AppendStep(ctx context.Context, step domain.TurnStep) (domain.TurnStep, error) {
	return step, nil
}
func (fakeTurnStore) ListSteps(ctx context.Context, turnID string) ([]domain.TurnStep, error) {
	return nil, nil
}
func (fakeTurnStore) SubmitFeedback(ctx context.Context, workspace, turnID, userID string, score int, comment string) error {
	return nil
}
func (fakeTurnStore) AddComment(ctx context.Context, workspace, turnID, userID, comment string) error {
	return nil
}

type fakeJobStore struct{}

func (fakeJobStore) CreateJob(ctx context.Context, j domain.Job) (domain.Job, error) { return j, nil }
func (fakeJobStore) LoadJob(ctx context.Context, id string) (domain.Job, error)      { return domain.Job{}, nil }
func (fakeJobStore) ClaimQueued(ctx context.Context, id string, now time.Time) (domain.Job, error) {
	return domain.Job{}, nil
}
func (fakeJobStore) Complete(ctx context.Context, id string, now time.Time) (domain.Job, error) {
	return domain.Job{}, nil
}
func (fakeJobStore) Fail(ctx context.Context, id string, now time.Time, errMsg string) (domain.Job, error) {
	return domain.Job{}, nil
}
func (fakeJobStore) Requeue(ctx context.Context, id string, now time.Time, backoffUntil time.Time) (domain.Job, error) {
	return domain.Job{}, nil
}
func (fakeJobStore) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]domain.Job, error) {
	return nil, nil
}

type fakeSecurityStore struct{}

func (fakeSecurityStore) RecordEvent(ctx context.Context, e domain.SecurityEvent) error { return nil }

type fakeQueueTransport struct{ failSend bool }

func (f *fakeQueueTransport) Send(ctx context.Context, jobID string, delay time.Duration) error {
	if f.failSend {
		return context.DeadlineExceeded
	}
	return nil
}
func (f *fakeQueueTransport) Receive(ctx context.Context, max int, visibilityTimeout time.Duration) ([]queue.Message, error) {
	return nil, nil
}
func (f *fakeQueueTransport) Delete(ctx context.Context, msg queue.Message) error { return nil }
func (f *fakeQueueTransport) ChangeVisibility(ctx context.Context, msg queue.Message, delay time.Duration) error {
	return nil
}

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, kvs ...telemetry.KV)            {}
func (noopLogger) Info(ctx context.Context, msg string, kvs ...telemetry.KV)             {}
func (noopLogger) Warn(ctx context.Context, msg string, kvs ...telemetry.KV)             {}
func (noopLogger) Error(ctx context.Context, msg string, err error, kvs ...telemetry.KV) {}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func newTestServer() *Server {
	svc := &chatapi.Service{
		Sessions: fakeSessionStore{},
		Turns:    fakeTurnStore{},
		Jobs:     fakeJobStore{},
		Security: fakeSecurityStore{},
		Queue:    &fakeQueueTransport{},
		Logger:   noopLogger{},
	}
	return New(svc, nil, noopLogger{})
}

func TestHandleSendMessage_Accepted(t *testing.T) {
	srv := newTestServer()
	body, _ := json.Marshal(sendMessageRequest{Workspace: "ws-1", UserID: "u-1", Message: "why is checkout down?"})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var result chatapi.SendMessageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotEmpty(t, result.TurnID)
}

func TestHandleSendMessage_InvalidJSONIsBadRequest(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSendMessage_WrongMethodIsMethodNotAllowed(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSendMessage_TransportUnavailableMapsTo503(t *testing.T) {
	svc := &chatapi.Service{
		Sessions: fakeSessionStore{}, Turns: fakeTurnStore{}, Jobs: fakeJobStore{},
		Security: fakeSecurityStore{}, Queue: &fakeQueueTransport{failSend: true}, Logger: noopLogger{},
	}
	srv := New(svc, nil, noopLogger{})
	body, _ := json.Marshal(sendMessageRequest{Workspace: "ws-1", Message: "why is checkout down?"})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleGetTurn_FoundAndNotFound(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/turns/turn-1?workspace=ws-1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/turns/missing?workspace=ws-1", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleFeedback_InvalidScoreIsBadRequest(t *testing.T) {
	srv := newTestServer()
	body, _ := json.Marshal(feedbackRequest{UserID: "u-1", Score: 5})
	req := httptest.NewRequest(http.MethodPost, "/turns/turn-1/feedback", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleFeedback_ValidScoreIsNoContent(t *testing.T) {
	srv := newTestServer()
	body, _ := json.Marshal(feedbackRequest{UserID: "u-1", Score: 1})
	req := httptest.NewRequest(http.MethodPost, "/turns/turn-1/feedback", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandleStreamTurn_EmitsSSEFrames(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/turns/turn-1/stream?workspace=ws-1", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "event: complete")
	require.Contains(t, rec.Body.String(), "root cause found")
}

func TestHandleSessions_ListDefaultsLimit(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/sessions?workspace=ws-1", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
}

func TestHandleSessionByID_GetPatchDelete(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/sessions/sess-1?workspace=ws-1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := json.Marshal(map[string]string{"title": "new title"})
	req = httptest.NewRequest(http.MethodPatch, "/sessions/sess-1?workspace=ws-1", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/sessions/sess-1?workspace=ws-1", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/sessions/sess-1?workspace=ws-1", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleHealthz_OKWithoutDB(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHealthz_DegradedWhenDBPingFails(t *testing.T) {
	svc := &chatapi.Service{
		Sessions: fakeSessionStore{}, Turns: fakeTurnStore{}, Jobs: fakeJobStore{},
		Security: fakeSecurityStore{}, Queue: &fakeQueueTransport{}, Logger: noopLogger{},
	}
	srv := New(svc, fakePinger{err: context.DeadlineExceeded}, noopLogger{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
