package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"invoicesplit/internal/domain"
	"invoicesplit/internal/export"
	"invoicesplit/internal/handler"
	"invoicesplit/internal/service"
	"invoicesplit/internal/settlement"
	"invoicesplit/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(method, path string, body *bytes.Buffer, id string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if body == nil {
		body = &bytes.Buffer{}
	}
	c.Request, _ = http.NewRequest(method, path, body)
	if id != "" {
		c.Params = gin.Params{{Key: "id", Value: id}}
	}
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, _ = part.Write(content)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestSessionHandler_Create(t *testing.T) {
	svc := new(mocks.MockSplitService)
	h := handler.NewSessionHandler(svc, 20)

	session := &domain.Session{ID: uuid.New(), State: domain.SessionStateEmpty, Names: domain.Names{A: "Ana", B: "Person 2"}}
	svc.On("Create", mock.Anything, domain.Names{A: "Ana"}).Return(session, nil)

	c, w := newContext(http.MethodPost, "/api/v1/sessions", bytes.NewBufferString(`{"a":"Ana"}`), "")
	c.Request.Header.Set("Content-Type", "application/json")
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decode(t, w).Success)
}

func TestSessionHandler_Get_InvalidID(t *testing.T) {
	h := handler.NewSessionHandler(new(mocks.MockSplitService), 20)

	c, w := newContext(http.MethodGet, "/api/v1/sessions/nope", nil, "nope")
	h.Get(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", decode(t, w).Error.Code)
}

func TestSessionHandler_Get_NotFound(t *testing.T) {
	svc := new(mocks.MockSplitService)
	h := handler.NewSessionHandler(svc, 20)
	id := uuid.New()
	svc.On("Get", mock.Anything, id).Return(nil, domain.ErrSessionNotFound)

	c, w := newContext(http.MethodGet, "/api/v1/sessions/"+id.String(), nil, id.String())
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode(t, w).Error.Code)
}

func TestSessionHandler_Submit_Multipart(t *testing.T) {
	svc := new(mocks.MockSplitService)
	h := handler.NewSessionHandler(svc, 20)
	id := uuid.New()

	var uploaded string
	svc.On("Submit", mock.Anything, id, mock.MatchedBy(func(in service.SubmitInput) bool {
		return in.Name == "march.pdf" && in.URI == "" && in.Path != ""
	})).Run(func(args mock.Arguments) {
		in := args.Get(2).(service.SubmitInput)
		data, err := os.ReadFile(in.Path)
		assert.NoError(t, err)
		uploaded = string(data)
	}).Return(&domain.Session{ID: id, State: domain.SessionStateReady}, nil)

	body, contentType := multipartBody(t, "march.pdf", []byte("%PDF-1.4 content"))
	c, w := newContext(http.MethodPost, "/api/v1/sessions/"+id.String()+"/document", body, id.String())
	c.Request.Header.Set("Content-Type", contentType)
	h.Submit(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4 content", uploaded)
}

func TestSessionHandler_Submit_RejectsNonPDF(t *testing.T) {
	svc := new(mocks.MockSplitService)
	h := handler.NewSessionHandler(svc, 20)
	id := uuid.New()

	body, contentType := multipartBody(t, "receipt.png", []byte("\x89PNG"))
	c, w := newContext(http.MethodPost, "/", body, id.String())
	c.Request.Header.Set("Content-Type", contentType)
	h.Submit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNSUPPORTED_FILE_TYPE", decode(t, w).Error.Code)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionHandler_Submit_TooLarge(t *testing.T) {
	svc := new(mocks.MockSplitService)
	h := handler.NewSessionHandler(svc, 1)
	id := uuid.New()

	content := append([]byte("%PDF-1.4 "), bytes.Repeat([]byte("x"), 1<<20)...)
	body, contentType := multipartBody(t, "big.pdf", content)
	c, w := newContext(http.MethodPost, "/", body, id.String())
	c.Request.Header.Set("Content-Type", contentType)
	h.Submit(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionHandler_Submit_URI(t *testing.T) {
	svc := new(mocks.MockSplitService)
	h := handler.NewSessionHandler(svc, 20)
	id := uuid.New()

	svc.On("Submit", mock.Anything, id, service.SubmitInput{URI: "s3://invoices/a.pdf"}).
		Return(&domain.Session{ID: id, State: domain.SessionStateReady}, nil)

	c, w := newContext(http.MethodPost, "/", bytes.NewBufferString(`{"uri":"s3://invoices/a.pdf"}`), id.String())
	c.Request.Header.Set("Content-Type", "application/json")
	h.Submit(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionHandler_Submit_MalformedReturnsFailedSession(t *testing.T) {
	svc := new(mocks.MockSplitService)
	h := handler.NewSessionHandler(svc, 20)
	id := uuid.New()

	failed := &domain.Session{
		ID:      id,
		State:   domain.SessionStateFailed,
		Failure: &domain.Failure{Code: "MALFORMED_RESPONSE", Raw: "Sure! Here it is"},
	}
	svc.On("Submit", mock.Anything, id, mock.Anything).
		Return(failed, domain.NewMalformedResponseError("Sure! Here it is", errors.New("invalid character 'S'")))

	c, w := newContext(http.MethodPost, "/", bytes.NewBufferString(`{"uri":"s3://b/k.pdf"}`), id.String())
	c.Request.Header.Set("Content-Type", "application/json")
	h.Submit(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"raw":"Sure! Here it is"`)
	assert.Equal(t, "MALFORMED_RESPONSE", decode(t, w).Error.Code)
}

func TestSessionHandler_Submit_MissingInput(t *testing.T) {
	h := handler.NewSessionHandler(new(mocks.MockSplitService), 20)
	id := uuid.New()

	c, w := newContext(http.MethodPost, "/", bytes.NewBufferString(`{}`), id.String())
	c.Request.Header.Set("Content-Type", "application/json")
	h.Submit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FILE", decode(t, w).Error.Code)
}

func TestSessionHandler_Toggle(t *testing.T) {
	svc := new(mocks.MockSplitService)
	h := handler.NewSessionHandler(svc, 20)
	id := uuid.New()

	summary := &settlement.Summary{Message: "Person 2 owes Person 1: 5.00 €"}
	svc.On("Toggle", mock.Anything, id, domain.ParticipantB, 0).Return(summary, nil)

	c, w := newContext(http.MethodPost, "/", bytes.NewBufferString(`{"participant":"B","index":0}`), id.String())
	c.Request.Header.Set("Content-Type", "application/json")
	h.Toggle(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "owes")
}

func TestSessionHandler_Toggle_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{"missing index", `{"participant":"a"}`, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown participant", `{"participant":"c","index":0}`, nil, http.StatusBadRequest, "UNKNOWN_PARTICIPANT"},
		{"out of range", `{"participant":"a","index":9}`, domain.ErrItemOutOfRange, http.StatusBadRequest, "ITEM_OUT_OF_RANGE"},
		{"no invoice", `{"participant":"a","index":0}`, domain.ErrNoInvoice, http.StatusConflict, "NO_INVOICE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mocks.MockSplitService)
			h := handler.NewSessionHandler(svc, 20)
			id := uuid.New()
			if tt.svcErr != nil {
				svc.On("Toggle", mock.Anything, id, mock.Anything, mock.Anything).Return(nil, tt.svcErr)
			}

			c, w := newContext(http.MethodPost, "/", bytes.NewBufferString(tt.body), id.String())
			c.Request.Header.Set("Content-Type", "application/json")
			h.Toggle(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decode(t, w).Error.Code)
		})
	}
}

func TestSessionHandler_Summary(t *testing.T) {
	svc := new(mocks.MockSplitService)
	h := handler.NewSessionHandler(svc, 20)
	id := uuid.New()

	summary := settlement.Summarize(&domain.Invoice{
		LineItems: []domain.LineItem{{Name: "x", TotalPrice: decimal.NewFromInt(4)}},
	}, domain.Allocation{}, domain.Names{A: "A", B: "B"}, "€")
	svc.On("Summary", mock.Anything, id).Return(&summary, nil)

	c, w := newContext(http.MethodGet, "/", nil, id.String())
	h.Summary(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), settlement.PerfectlySplitMessage)
}

func TestSessionHandler_Export(t *testing.T) {
	svc := new(mocks.MockSplitService)
	h := handler.NewSessionHandler(svc, 20)
	id := uuid.New()

	svc.On("Export", mock.Anything, id, export.FormatXLSX).Return(&service.ExportOutput{
		Filename:    "split_INV-1_2024-03-01.xlsx",
		ContentType: export.FormatXLSX.ContentType(),
		Data:        []byte("PK"),
	}, nil)

	c, w := newContext(http.MethodGet, "/?format=xlsx", nil, id.String())
	h.Export(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="split_INV-1_2024-03-01.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/vnd.openxmlformats"))
}

func TestSessionHandler_Export_BadFormat(t *testing.T) {
	h := handler.NewSessionHandler(new(mocks.MockSplitService), 20)
	id := uuid.New()

	c, w := newContext(http.MethodGet, "/?format=ods", nil, id.String())
	h.Export(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", decode(t, w).Error.Code)
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrSessionBusy, http.StatusConflict, "SESSION_BUSY"},
		{domain.ErrUnreadableDocument, http.StatusUnprocessableEntity, "UNREADABLE_DOCUMENT"},
		{domain.ErrMissingCredential, http.StatusServiceUnavailable, "MISSING_CREDENTIAL"},
		{errors.Join(domain.ErrExtractionFailure, errors.New("timeout")), http.StatusBadGateway, "EXTRACTION_FAILURE"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		status, code, _ := handler.MapDomainError(tt.err)
		assert.Equal(t, tt.status, status, tt.code)
		assert.Equal(t, tt.code, code)
	}

	_, _, msg := handler.MapDomainError(errors.Join(domain.ErrExtractionFailure, errors.New("connection reset")))
	assert.Contains(t, msg, "connection reset")
}
