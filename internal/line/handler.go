package line

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	observemetrics "github.com/wolfman30/ai-mail-assistant/internal/observability/metrics"
	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

const maxWebhookBody = 1 << 20

// Responder produces the single reply for an inbound message.
type Responder interface {
	Handle(ctx context.Context, identifier, text string) string
}

// Messenger sends replies back to LINE.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, texts ...string) error
	Push(ctx context.Context, to string, texts ...string) error
}

// WebhookConfig wires a WebhookHandler.
type WebhookConfig struct {
	ChannelSecret string
	Messenger     Messenger
	Responder     Responder
	Processed     ProcessedTracker
	// ReplyWindow is how long after the event a reply token is trusted.
	ReplyWindow time.Duration
	// Concurrency bounds how many users are served at once per batch.
	Concurrency int
	Logger      *logging.Logger
	Metrics     *observemetrics.ConversationMetrics
	Tracer      trace.Tracer
}

// WebhookHandler receives LINE webhook batches and answers text messages.
type WebhookHandler struct {
	secret      string
	messenger   Messenger
	responder   Responder
	processed   ProcessedTracker
	replyWindow time.Duration
	concurrency int
	logger      *logging.Logger
	metrics     *observemetrics.ConversationMetrics
	tracer      trace.Tracer
	now         func() time.Time
}

func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Messenger == nil || cfg.Responder == nil {
		panic("line: messenger and responder are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Processed == nil {
		cfg.Processed = NewMemoryProcessed(time.Hour)
	}
	if cfg.ReplyWindow <= 0 {
		cfg.ReplyWindow = 50 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("mailbot.internal.line")
	}
	return &WebhookHandler{
		secret:      cfg.ChannelSecret,
		messenger:   cfg.Messenger,
		responder:   cfg.Responder,
		processed:   cfg.Processed,
		replyWindow: cfg.ReplyWindow,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		tracer:      cfg.Tracer,
		now:         time.Now,
	}
}

// ServeHTTP verifies, decodes and processes one webhook batch.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := VerifySignature(h.secret, body, r.Header.Get("X-Line-Signature")); err != nil {
		h.logger.Warn("invalid line webhook signature", "error", err)
		h.metrics.ObserveWebhookLatency("unauthorized", time.Since(start).Seconds())
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("invalid line webhook payload", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// Work continues even if LINE drops the connection.
	ctx := context.WithoutCancel(r.Context())
	h.Process(ctx, payload.Events)

	h.metrics.ObserveWebhookLatency("ok", time.Since(start).Seconds())
	w.WriteHeader(http.StatusOK)
}

// Process handles a batch. Events of one identifier run in delivery order;
// different identifiers run concurrently.
func (h *WebhookHandler) Process(ctx context.Context, events []Event) {
	ctx, span := h.tracer.Start(ctx, "line.process_batch", trace.WithAttributes(attribute.Int("line.events", len(events))))
	defer span.End()

	var order []string
	lanes := make(map[string][]Event)
	for _, evt := range events {
		if !evt.IsText() {
			h.metrics.ObserveWebhookEvent(evt.Type, "ignored")
			continue
		}
		id := evt.Source.Identifier()
		if id == "" {
			h.logger.Warn("line event without source id", "event_id", evt.WebhookEventID)
			h.metrics.ObserveWebhookEvent(evt.Type, "ignored")
			continue
		}
		if _, ok := lanes[id]; !ok {
			order = append(order, id)
		}
		lanes[id] = append(lanes[id], evt)
	}

	var g errgroup.Group
	g.SetLimit(h.concurrency)
	for _, id := range order {
		batch := lanes[id]
		g.Go(func() error {
			for _, evt := range batch {
				h.handleEvent(ctx, evt)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (h *WebhookHandler) handleEvent(ctx context.Context, evt Event) {
	if evt.WebhookEventID != "" {
		fresh, err := h.processed.MarkProcessed(ctx, evt.WebhookEventID)
		if err != nil {
			h.logger.Error("processed lookup failed", "error", err, "event_id", evt.WebhookEventID)
		} else if !fresh {
			h.logger.Info("skipping duplicate line event", "event_id", evt.WebhookEventID, "redelivery", evt.IsRedelivery())
			h.metrics.ObserveWebhookEvent(evt.Type, "duplicate")
			return
		}
	}

	identifier := evt.Source.Identifier()
	reply := h.responder.Handle(ctx, identifier, evt.Message.Text)
	if err := h.deliver(ctx, evt, reply); err != nil {
		h.logger.Error("line reply failed", "error", err, "identifier", identifier, "event_id", evt.WebhookEventID)
		h.metrics.ObserveWebhookEvent(evt.Type, "reply_failed")
		return
	}
	h.metrics.ObserveWebhookEvent(evt.Type, "handled")
}

// deliver uses the reply token while it is fresh and falls back to push.
func (h *WebhookHandler) deliver(ctx context.Context, evt Event, reply string) error {
	target := evt.Source.PushTarget()
	fresh := evt.ReplyToken != "" && (evt.Timestamp == 0 || h.now().Sub(evt.SentAt()) < h.replyWindow)
	if !fresh {
		return h.messenger.Push(ctx, target, reply)
	}
	err := h.messenger.Reply(ctx, evt.ReplyToken, reply)
	if err == nil || !IsBadRequest(err) {
		return err
	}
	h.logger.Warn("reply token rejected, pushing instead", "error", err, "event_id", evt.WebhookEventID)
	return h.messenger.Push(ctx, target, reply)
}
