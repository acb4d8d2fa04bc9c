package webhook

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"vitigo_crm_backend/platform/logger"
)

type fakeWebhookConfig struct {
	verifyToken string
	appSecret   string
}

func (c fakeWebhookConfig) GetVerifyToken(string) string { return c.verifyToken }
func (c fakeWebhookConfig) GetAppSecret(string) string   { return c.appSecret }

func newTestHandlerRouter(cfg fakeWebhookConfig, creator *fakeCreator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New("development")
	svc, _ := newTestService(creator, nil, nil)
	h := NewHandler(svc, cfg, log)

	r := gin.New()
	r.GET("/webhooks/:channel/", h.HandleVerify)
	r.POST("/webhooks/:channel/", h.HandleEvent)
	return r
}

func TestHandleVerifyChallenge(t *testing.T) {
	r := newTestHandlerRouter(fakeWebhookConfig{verifyToken: "tok"}, &fakeCreator{})

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp/?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "12345" {
		t.Errorf("body = %q, want challenge echoed", w.Body.String())
	}
}

func TestHandleVerifyRejectsBadToken(t *testing.T) {
	r := newTestHandlerRouter(fakeWebhookConfig{verifyToken: "tok"}, &fakeCreator{})

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp/?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestHandleVerifyUnknownChannel(t *testing.T) {
	r := newTestHandlerRouter(fakeWebhookConfig{verifyToken: "tok"}, &fakeCreator{})

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/telegram/?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleEventRejectsBadSignature(t *testing.T) {
	r := newTestHandlerRouter(fakeWebhookConfig{appSecret: "secret"}, &fakeCreator{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/", strings.NewReader(whatsappBody))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestHandleEventAcknowledgesDelivery(t *testing.T) {
	creator := &fakeCreator{}
	r := newTestHandlerRouter(fakeWebhookConfig{appSecret: "secret"}, creator)

	body := []byte(whatsappBody)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/", strings.NewReader(whatsappBody))
	req.Header.Set("X-Hub-Signature-256", sign("secret", body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "received") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestHandleEventRejectsMalformedBody(t *testing.T) {
	r := newTestHandlerRouter(fakeWebhookConfig{}, &fakeCreator{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/facebook/", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
