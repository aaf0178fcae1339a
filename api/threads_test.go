package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"querygraph/domain"
)

func TestListThreadsEndpoint(t *testing.T) {
	gen := &scriptedGenerator{}
	gen.push("FINALIZE: one")
	handler, _ := newTestHandler(t, gen, "")
	e := echo.New()

	postOrchestrate(t, handler, e, domain.OrchestrateRequest{Query: "first"})

	req := httptest.NewRequest(http.MethodGet, "/v1/threads", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assert.NoError(t, handler.ListThreads(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Threads []domain.ThreadSummary `json:"threads"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Threads, 1)
	assert.Equal(t, domain.ThreadStatusCompleted, resp.Threads[0].Status)
	assert.Equal(t, 2, resp.Threads[0].Messages)
}

func TestListThreadsStatusFilter(t *testing.T) {
	gen := &scriptedGenerator{}
	gen.push(
		"DELEGATE: research_worker; TASK: t",
		"SEARCH: t",
	)
	handler, _ := newTestHandler(t, gen, "")
	e := echo.New()

	postOrchestrate(t, handler, e, domain.OrchestrateRequest{Query: "q"})

	req := httptest.NewRequest(http.MethodGet, "/v1/threads?status=SUSPENDED", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assert.NoError(t, handler.ListThreads(c))

	var resp struct {
		Threads []domain.ThreadSummary `json:"threads"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Threads, 1)

	req = httptest.NewRequest(http.MethodGet, "/v1/threads?status=COMPLETED", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)

	assert.NoError(t, handler.ListThreads(c))
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Threads)
}

func TestGetThreadWithPendingInterrupt(t *testing.T) {
	gen := &scriptedGenerator{}
	gen.push(
		"DELEGATE: research_worker; TASK: t",
		"SEARCH: t",
	)
	handler, _ := newTestHandler(t, gen, "")
	e := echo.New()

	rec := postOrchestrate(t, handler, e, domain.OrchestrateRequest{Query: "q"})
	var interrupted domain.InterruptedResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &interrupted))

	req := httptest.NewRequest(http.MethodGet, "/v1/threads/"+interrupted.ThreadID, nil)
	getRec := httptest.NewRecorder()
	c := e.NewContext(req, getRec)
	c.SetPath("/v1/threads/:thread_id")
	c.SetParamNames("thread_id")
	c.SetParamValues(interrupted.ThreadID)

	assert.NoError(t, handler.GetThread(c))
	assert.Equal(t, http.StatusOK, getRec.Code)

	var resp domain.ThreadResponse
	assert.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &resp))
	assert.Equal(t, domain.ThreadStatusSuspended, resp.Status)
	assert.NotNil(t, resp.PendingInterrupt)
	assert.Equal(t, "t", resp.PendingInterrupt.ProposedArgument)
}

func TestGetThreadNotFound(t *testing.T) {
	handler, _ := newTestHandler(t, &scriptedGenerator{}, "")
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/v1/threads/th_missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/threads/:thread_id")
	c.SetParamNames("thread_id")
	c.SetParamValues("th_missing")

	assert.NoError(t, handler.GetThread(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetThreadMessagesPagination(t *testing.T) {
	gen := &scriptedGenerator{}
	gen.push("FINALIZE: a1")
	handler, _ := newTestHandler(t, gen, "")
	e := echo.New()

	rec := postOrchestrate(t, handler, e, domain.OrchestrateRequest{Query: "q1"})
	var done domain.CompletedResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &done))

	gen.push("FINALIZE: a2")
	postOrchestrate(t, handler, e, domain.OrchestrateRequest{Query: "q2", ThreadID: done.ThreadID})

	// 4 messages total; page of 3 from the tail.
	req := httptest.NewRequest(http.MethodGet, "/v1/threads/"+done.ThreadID+"/messages?limit=3", nil)
	pageRec := httptest.NewRecorder()
	c := e.NewContext(req, pageRec)
	c.SetPath("/v1/threads/:thread_id/messages")
	c.SetParamNames("thread_id")
	c.SetParamValues(done.ThreadID)

	assert.NoError(t, handler.GetThreadMessages(c))
	assert.Equal(t, http.StatusOK, pageRec.Code)

	var resp struct {
		Messages []domain.Message `json:"messages"`
		HasMore  bool             `json:"has_more"`
	}
	assert.NoError(t, json.Unmarshal(pageRec.Body.Bytes(), &resp))
	assert.Len(t, resp.Messages, 3)
	assert.True(t, resp.HasMore)

	// before excludes the named message and everything after it.
	before := resp.Messages[0].MessageID
	req = httptest.NewRequest(http.MethodGet, "/v1/threads/"+done.ThreadID+"/messages?before="+before, nil)
	pageRec = httptest.NewRecorder()
	c = e.NewContext(req, pageRec)
	c.SetPath("/v1/threads/:thread_id/messages")
	c.SetParamNames("thread_id")
	c.SetParamValues(done.ThreadID)

	assert.NoError(t, handler.GetThreadMessages(c))
	assert.NoError(t, json.Unmarshal(pageRec.Body.Bytes(), &resp))
	assert.Len(t, resp.Messages, 1)
	assert.False(t, resp.HasMore)
	assert.Equal(t, "q1", resp.Messages[0].Content)
}
