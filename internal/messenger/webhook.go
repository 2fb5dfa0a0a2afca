package messenger

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Dispatcher handles classified webhook events.
type Dispatcher interface {
	HandleText(ctx context.Context, psid, text string)
	HandleQuickReply(ctx context.Context, psid, payload string)
	HandlePostback(ctx context.Context, psid, payload string)
}

// ProfileInstaller installs the Get Started button and persistent menu.
type ProfileInstaller interface {
	SetupProfile(ctx context.Context) error
}

// Webhook serves the platform verification handshake and inbound events.
type Webhook struct {
	verifyToken string
	dispatcher  Dispatcher
	installer   ProfileInstaller
	log         *slog.Logger
}

// NewWebhook creates the webhook handler.
func NewWebhook(verifyToken string, d Dispatcher, installer ProfileInstaller, log *slog.Logger) *Webhook {
	return &Webhook{verifyToken: verifyToken, dispatcher: d, installer: installer, log: log}
}

// Router builds the HTTP routes.
func (wh *Webhook) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/webhook", wh.handleVerify)
	r.Post("/webhook", wh.handleEvents)
	r.Post("/profile", wh.handleProfileSetup)
	return r
}

// handleVerify answers the subscription handshake: echo the challenge when
// the token matches, 403 otherwise.
func (wh *Webhook) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && token == wh.verifyToken {
		wh.log.Info("webhook verified")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}
	w.WriteHeader(http.StatusForbidden)
}

// handleEvents acknowledges the delivery immediately and processes the
// events asynchronously; the platform retries on slow responses.
func (wh *Webhook) handleEvents(w http.ResponseWriter, r *http.Request) {
	var payload WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		wh.log.Warn("bad webhook payload", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if payload.Object != "page" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("EVENT RECEIVED"))

	go wh.process(payload)
}

func (wh *Webhook) process(payload WebhookPayload) {
	ctx := context.Background()
	for _, entry := range payload.Entry {
		for i := range entry.Messaging {
			ev := &entry.Messaging[i]
			psid := ev.Sender.ID

			switch ev.Kind() {
			case KindTextMessage:
				wh.dispatcher.HandleText(ctx, psid, ev.Message.Text)
			case KindQuickReply:
				wh.dispatcher.HandleQuickReply(ctx, psid, ev.Message.QuickReply.Payload)
			case KindPostback:
				wh.dispatcher.HandlePostback(ctx, psid, ev.Postback.Payload)
			case KindRead, KindDelivery, KindReaction, KindEcho:
				// Receipts and our own echoes carry no work.
			default:
				wh.log.Debug("unhandled webhook event", "psid", psid)
			}
		}
	}
}

func (wh *Webhook) handleProfileSetup(w http.ResponseWriter, r *http.Request) {
	if err := wh.installer.SetupProfile(r.Context()); err != nil {
		wh.log.Error("profile setup failed", "error", err)
		http.Error(w, "profile setup failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("PROFILE SET"))
}
