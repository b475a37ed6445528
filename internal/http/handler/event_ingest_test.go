package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/editorial/internal/http/handler"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/service"
)

var _ = Describe("EventIngestHandler", func() {
	var (
		router *gin.Engine
		svc    *mockIngestService
	)

	post := func(body string, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockIngestService{}
		h := handler.NewEventIngestHandler(svc, "X-Trace-ID")
		router.POST("/events", h.Ingest)
	})

	It("returns 202 and passes the event to the service", func() {
		w := post(`{"event_type":"comment_created","project_id":"group/novel","thread_id":"group/novel#3","author":"alice","text":"use sage"}`,
			map[string]string{"X-Trace-ID": "trace-1"})

		Expect(w.Code).To(Equal(http.StatusAccepted))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["enqueued"]).To(BeTrue())

		Expect(svc.calls).To(HaveLen(1))
		ev := svc.calls[0].Event
		Expect(ev.Type).To(Equal(model.EventTypeCommentCreated))
		Expect(ev.ThreadID).To(Equal("group/novel#3"))
		Expect(ev.Text).To(Equal("use sage"))
		Expect(ev.TraceID).To(Equal("trace-1"))
	})

	It("returns 400 when required fields are missing", func() {
		w := post(`{"event_type":"comment_created"}`, nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(svc.calls).To(BeEmpty())
	})

	It("returns 400 for invalid input reported by the service", func() {
		svc.ingestFn = func(_ context.Context, _ service.EventIngestParams) (*service.EventIngestResult, error) {
			return nil, errors.Join(service.ErrInvalidInput, errors.New("unknown event_type"))
		}
		w := post(`{"event_type":"bogus","project_id":"p","thread_id":"t"}`, nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 500 when the queue fails", func() {
		svc.ingestFn = func(_ context.Context, _ service.EventIngestParams) (*service.EventIngestResult, error) {
			return nil, errors.New("redis down")
		}
		w := post(`{"event_type":"comment_created","project_id":"p","thread_id":"t"}`, nil)
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})
