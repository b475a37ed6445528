package handler_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/editorial/internal/http/handler"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/tracker"
)

var _ = Describe("GitLabWebhookHandler", func() {
	var (
		router *gin.Engine
		svc    *mockIngestService
	)

	noteHook := `{
		"object_kind": "note",
		"user": {"username": "alice"},
		"project": {"path_with_namespace": "group/novel"},
		"object_attributes": {"note": "be harsher", "noteable_type": "Issue"},
		"issue": {"iid": 3}
	}`

	send := func(token, event, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/gitlab", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("X-Gitlab-Token", token)
		}
		req.Header.Set("X-Gitlab-Event", event)
		req.Header.Set("X-Gitlab-Event-UUID", "uuid-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockIngestService{}
		h := handler.NewGitLabWebhookHandler(tracker.NewWebhookParser("secret", "editor-bot"), svc, "X-Trace-ID")
		router.POST("/webhooks/gitlab", h.HandleEvent)
	})

	It("ingests a note hook as a comment", func() {
		w := send("secret", "Note Hook", noteHook)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(svc.calls).To(HaveLen(1))
		Expect(svc.calls[0].Source).To(Equal("gitlab"))
		Expect(*svc.calls[0].ExternalEventID).To(Equal("uuid-1"))
		Expect(svc.calls[0].Event.Type).To(Equal(model.EventTypeCommentCreated))
		Expect(svc.calls[0].Event.ThreadID).To(Equal("group/novel#3"))
	})

	It("rejects a wrong token", func() {
		w := send("wrong", "Note Hook", noteHook)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(svc.calls).To(BeEmpty())
	})

	It("acknowledges hooks it does not handle", func() {
		w := send("secret", "Push Hook", `{"object_kind":"push","project":{"path_with_namespace":"group/novel"}}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("ignored"))
		Expect(svc.calls).To(BeEmpty())
	})

	It("returns 400 for malformed payloads", func() {
		w := send("secret", "Note Hook", `{`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
