package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/carebridge/internal/platform/auth"
)

func asUser(id uuid.UUID, role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, auth.UserIDKey, id.String())
			ctx = context.WithValue(ctx, auth.UserRoleKey, role)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func newHandlerEcho(svc *Service, callerID uuid.UUID, role string) *echo.Echo {
	e := echo.New()
	api := e.Group("/api", asUser(callerID, role))
	NewHandler(svc).RegisterRoutes(api)
	return e
}

func (f *fixture) do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateAndSubmit(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	e := newHandlerEcho(f.svc, patientID, auth.RolePatient)

	rec := f.do(e, http.MethodPost, "/api/conversations", `{"title":"triage"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var conv Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("unmarshal conversation: %v", err)
	}

	rec = f.do(e, http.MethodPost, "/api/conversations/"+conv.ID.String()+"/messages", `{"content":"I found a lump"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var reply Message
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if !reply.FromAssistant() {
		t.Error("expected assistant reply")
	}
	if reply.ParentMessageID == nil {
		t.Error("expected reply linked to the patient message")
	}
}

func TestHandler_Submit_Forbidden(t *testing.T) {
	f := newFixture()
	conv := f.newConversation(uuid.New())

	e := newHandlerEcho(f.svc, uuid.New(), auth.RolePatient)
	rec := f.do(e, http.MethodPost, "/api/conversations/"+conv.ID.String()+"/messages", `{"content":"hi"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_Submit_NotFound(t *testing.T) {
	f := newFixture()
	e := newHandlerEcho(f.svc, uuid.New(), auth.RolePatient)

	rec := f.do(e, http.MethodPost, "/api/conversations/"+uuid.NewString()+"/messages", `{"content":"hi"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_Submit_AssistantDown(t *testing.T) {
	f := newFixture()
	f.assistant.fail = true
	patientID := uuid.New()
	conv := f.newConversation(patientID)

	e := newHandlerEcho(f.svc, patientID, auth.RolePatient)
	rec := f.do(e, http.MethodPost, "/api/conversations/"+conv.ID.String()+"/messages", `{"content":"hi"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
	// The patient message survived the failed turn.
	if len(f.msgs.msgs) != 1 {
		t.Errorf("expected patient message kept, got %d messages", len(f.msgs.msgs))
	}
}

func TestHandler_Submit_RegenerateConflict(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	conv := f.newConversation(patientID)
	e := newHandlerEcho(f.svc, patientID, auth.RolePatient)

	rec := f.do(e, http.MethodPost, "/api/conversations/"+conv.ID.String()+"/messages", `{"content":"hi"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var reply Message
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	body := `{"regenerate_of":"` + reply.ParentMessageID.String() + `"}`
	rec = f.do(e, http.MethodPost, "/api/conversations/"+conv.ID.String()+"/messages", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for answered message, got %d", rec.Code)
	}
}

func TestHandler_ListMessages(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	conv := f.newConversation(patientID)
	e := newHandlerEcho(f.svc, patientID, auth.RolePatient)

	rec := f.do(e, http.MethodPost, "/api/conversations/"+conv.ID.String()+"/messages", `{"content":"hi"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = f.do(e, http.MethodGet, "/api/conversations/"+conv.ID.String()+"/messages", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var msgs []Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("expected patient message and reply, got %d", len(msgs))
	}
}

func TestHandler_UpdateStatus(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	conv := f.newConversation(patientID)
	e := newHandlerEcho(f.svc, patientID, auth.RolePatient)

	rec := f.do(e, http.MethodPut, "/api/conversations/"+conv.ID.String()+"/status", `{"status":"completed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(e, http.MethodPut, "/api/conversations/"+conv.ID.String()+"/status", `{"status":"active"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid transition, got %d", rec.Code)
	}
}

func TestMapError_StatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", ErrConversationNotFound, http.StatusNotFound},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"validation", ErrInvalidInput, http.StatusBadRequest},
		{"assistant down", ErrAssistantUnavailable, http.StatusBadGateway},
		{"unexpected", errors.New("pq: connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he, ok := mapError(tt.err).(*echo.HTTPError)
			if !ok {
				t.Fatal("expected echo.HTTPError")
			}
			if he.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, he.Code)
			}
		})
	}

	// Unexpected errors must not leak their text to the client.
	he := mapError(errors.New("pq: connection refused")).(*echo.HTTPError)
	if msg, _ := he.Message.(string); msg != "internal server error" {
		t.Errorf("expected generic message for unexpected error, got %q", he.Message)
	}
}

func TestHandler_Delete(t *testing.T) {
	f := newFixture()
	patientID := uuid.New()
	conv := f.newConversation(patientID)
	e := newHandlerEcho(f.svc, patientID, auth.RolePatient)

	rec := f.do(e, http.MethodDelete, "/api/conversations/"+conv.ID.String(), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = f.do(e, http.MethodGet, "/api/conversations/"+conv.ID.String(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}
