package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	msgmail "github.com/emersion/go-message/mail"

	"github.com/wolfman30/ai-mail-assistant/internal/drafts"
	"github.com/wolfman30/ai-mail-assistant/internal/mail"
	"github.com/wolfman30/ai-mail-assistant/internal/observability/metrics"
	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

// DraftGenerator produces candidate emails for a recipient and intent.
type DraftGenerator interface {
	Generate(ctx context.Context, recipient, intent string) ([]drafts.Draft, error)
}

// Dispatcher delivers one email.
type Dispatcher interface {
	Send(ctx context.Context, recipient, subject, body string) (mail.Receipt, error)
}

// Finalizer turns an approved draft into a structured send action.
type Finalizer interface {
	Finalize(ctx context.Context, recipient string, d drafts.Draft) (drafts.Action, error)
}

// EngineConfig tunes the dialogue.
type EngineConfig struct {
	TriggerPhrase  string
	CancelKeywords []string
	// SessionTTL discards a conversation idle for longer; zero disables expiry.
	SessionTTL   time.Duration
	LLMTimeout   time.Duration
	PreviewRunes int
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithFinalizer routes every selection through a tool-call confirmation step.
func WithFinalizer(f Finalizer) EngineOption {
	return func(e *Engine) { e.finalizer = f }
}

func WithMetrics(m *metrics.ConversationMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// Engine is the conversation state machine shared by every front end.
type Engine struct {
	store      Store
	generator  DraftGenerator
	dispatcher Dispatcher
	finalizer  Finalizer
	metrics    *metrics.ConversationMetrics
	logger     *logging.Logger
	lanes      *laneLock
	now        func() time.Time

	trigger      string
	cancelWords  []string
	sessionTTL   time.Duration
	llmTimeout   time.Duration
	previewRunes int
}

func NewEngine(store Store, generator DraftGenerator, dispatcher Dispatcher, cfg EngineConfig, logger *logging.Logger, opts ...EngineOption) *Engine {
	if store == nil || generator == nil || dispatcher == nil {
		panic("conversation: store, generator and dispatcher are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	trigger := strings.TrimSpace(cfg.TriggerPhrase)
	if trigger == "" {
		trigger = "send mail"
	}
	var cancelWords []string
	for _, w := range cfg.CancelKeywords {
		if w = strings.TrimSpace(w); w != "" {
			cancelWords = append(cancelWords, w)
		}
	}
	if len(cancelWords) == 0 {
		cancelWords = []string{"cancel"}
	}
	previewRunes := cfg.PreviewRunes
	if previewRunes == 0 {
		previewRunes = 200
	}

	e := &Engine{
		store:        store,
		generator:    generator,
		dispatcher:   dispatcher,
		logger:       logger,
		lanes:        newLaneLock(),
		now:          time.Now,
		trigger:      trigger,
		cancelWords:  cancelWords,
		sessionTTL:   cfg.SessionTTL,
		llmTimeout:   cfg.LLMTimeout,
		previewRunes: previewRunes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TriggerPhrase is the text that starts a new draft.
func (e *Engine) TriggerPhrase() string { return e.trigger }

// CancelKeyword is the keyword shown to users in prompts.
func (e *Engine) CancelKeyword() string { return e.cancelWords[0] }

// Snapshot returns the stored conversation for identifier, if any.
func (e *Engine) Snapshot(ctx context.Context, identifier string) (State, bool, error) {
	return e.store.Get(ctx, identifier)
}

// outcome is what one step decided.
type outcome struct {
	reply string
	// sent marks an email that already left; the reply must not be replaced.
	sent bool
}

// Handle processes one inbound message and returns the single reply for it.
// Messages for the same identifier are handled one at a time in arrival order.
func (e *Engine) Handle(ctx context.Context, identifier, text string) (reply string) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		e.logger.Error("conversation: message without identifier")
		return replyInternalError
	}

	release, err := e.lanes.Lock(ctx, identifier)
	if err != nil {
		e.logger.Warn("conversation: gave up waiting for lane", "identifier", identifier, "error", err)
		return replyInternalError
	}
	defer release()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("conversation: panic while handling message", "identifier", identifier, "panic", fmt.Sprint(r))
			reply = replyInternalError
		}
	}()

	state, found, err := e.store.Get(ctx, identifier)
	if err != nil {
		e.logger.Error("conversation: failed to load state", "identifier", identifier, "error", err)
		return replyInternalError
	}
	now := e.now()
	if !found {
		state = newState(identifier, now)
	} else if e.expired(state, now) {
		e.logger.Info("conversation: session expired", "identifier", identifier, "phase", string(state.Phase))
		state.reset()
		state.CreatedAt = now
	}

	from := state.Phase
	out := e.step(ctx, &state, strings.TrimSpace(text))
	state.LastActivityAt = e.now()

	if err := e.commit(ctx, state, found); err != nil {
		e.logger.Error("conversation: failed to commit state", "identifier", identifier, "phase", string(state.Phase), "error", err)
		if !out.sent {
			return replyInternalError
		}
		e.clearAfterSend(ctx, state)
	}
	e.metrics.ObserveTransition(string(from), string(state.Phase))
	e.logger.Debug("conversation: handled message", "identifier", identifier, "from", string(from), "phase", string(state.Phase))
	return out.reply
}

func (e *Engine) expired(state State, now time.Time) bool {
	return e.sessionTTL > 0 && state.Phase != PhaseIdle && now.Sub(state.LastActivityAt) > e.sessionTTL
}

// clearAfterSend makes sure a delivered selection cannot be replayed when the
// regular commit failed. It retries the removal and falls back to writing the
// idle state over the stale entry.
func (e *Engine) clearAfterSend(ctx context.Context, state State) {
	ctx = context.WithoutCancel(ctx)
	if err := e.store.Remove(ctx, state.Identifier); err == nil {
		e.logger.Warn("conversation: cleared state after send on retry", "identifier", state.Identifier)
		return
	}
	if err := e.store.Set(ctx, state); err != nil {
		e.logger.Error("conversation: stale selection left after send", "identifier", state.Identifier, "error", err)
		return
	}
	e.logger.Warn("conversation: overwrote state with idle after send", "identifier", state.Identifier)
}

// commit persists state; idle states are removed since absence means idle.
func (e *Engine) commit(ctx context.Context, state State, existed bool) error {
	if state.Phase == PhaseIdle {
		if !existed {
			return nil
		}
		return e.store.Remove(ctx, state.Identifier)
	}
	if err := state.Validate(); err != nil {
		return err
	}
	return e.store.Set(ctx, state)
}

func (e *Engine) step(ctx context.Context, state *State, text string) outcome {
	if state.Phase != PhaseIdle && e.isCancel(text) {
		state.reset()
		return outcome{reply: replyCancelled}
	}

	switch state.Phase {
	case PhaseIdle:
		if strings.Contains(strings.ToLower(text), strings.ToLower(e.trigger)) {
			state.Phase = PhaseAwaitingRecipient
			return outcome{reply: replyAskRecipient}
		}
		return outcome{reply: replyHelp(e.trigger)}

	case PhaseAwaitingRecipient:
		recipient, err := parseRecipient(text)
		if err != nil {
			e.logger.Debug("conversation: rejected recipient", "identifier", state.Identifier, "error", err)
			return outcome{reply: replyInvalidRecipient}
		}
		state.Recipient = recipient
		state.Phase = PhaseAwaitingIntent
		return outcome{reply: replyAskIntent(recipient, e.CancelKeyword())}

	case PhaseAwaitingIntent:
		if text == "" {
			return outcome{reply: replyAskIntentAgain}
		}
		return e.generate(ctx, state, text)

	case PhaseAwaitingSelection:
		n, err := parseSelection(text, len(state.Drafts))
		if err != nil {
			return outcome{reply: replySelectionHint(len(state.Drafts), e.CancelKeyword())}
		}
		return e.send(ctx, state, state.Drafts[n-1])
	}

	panic(fmt.Sprintf("conversation: unhandled phase %q", state.Phase))
}

func (e *Engine) generate(ctx context.Context, state *State, intent string) outcome {
	genCtx, cancel := e.withLLMTimeout(ctx)
	defer cancel()

	started := time.Now()
	list, err := e.generator.Generate(genCtx, state.Recipient, intent)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		e.metrics.ObserveGeneration(false, 0, elapsed)
		e.logger.Error("conversation: draft generation failed", "identifier", state.Identifier, "error", err)
		state.reset()
		return outcome{reply: replyGenerationFailed}
	}
	if len(list) == 0 {
		e.metrics.ObserveGeneration(false, 0, elapsed)
		e.logger.Error("conversation: generator returned no drafts", "identifier", state.Identifier)
		state.reset()
		return outcome{reply: replyGenerationFailed}
	}
	if len(list) > drafts.ExpectedCount {
		list = list[:drafts.ExpectedCount]
	}
	e.metrics.ObserveGeneration(true, len(list), elapsed)

	state.Intent = intent
	state.Drafts = list
	state.Phase = PhaseAwaitingSelection
	return outcome{reply: renderDrafts(state.Recipient, list, e.previewRunes, e.CancelKeyword())}
}

func (e *Engine) send(ctx context.Context, state *State, d drafts.Draft) outcome {
	subject, body := d.Subject, d.Body
	if e.finalizer != nil {
		finCtx, cancel := e.withLLMTimeout(ctx)
		action, err := e.finalizer.Finalize(finCtx, state.Recipient, d)
		cancel()
		if err != nil {
			e.logger.Error("conversation: send confirmation failed", "identifier", state.Identifier, "error", err)
			return outcome{reply: fmt.Sprintf(replyFinalizeFailed, e.CancelKeyword())}
		}
		subject, body = action.Subject, action.Body
	}

	receipt, err := e.dispatcher.Send(ctx, state.Recipient, subject, body)
	if err != nil {
		var sendErr *mail.SendError
		if errors.As(err, &sendErr) {
			e.metrics.ObserveDispatch(sendErr.Provider, string(sendErr.Kind))
			return outcome{reply: replySendFailed(sendErr, e.CancelKeyword())}
		}
		e.metrics.ObserveDispatch("unknown", string(mail.KindUnknown))
		e.logger.Error("conversation: dispatch failed", "identifier", state.Identifier, "error", err)
		return outcome{reply: replySendFailed(&mail.SendError{Kind: mail.KindUnknown}, e.CancelKeyword())}
	}
	e.metrics.ObserveDispatch(receipt.Provider, "ok")
	e.logger.Info("conversation: email sent", "identifier", state.Identifier, "to", state.Recipient, "subject", subject, "message_id", receipt.ID)

	recipient := state.Recipient
	state.reset()
	return outcome{reply: replySent(subject, recipient), sent: true}
}

func (e *Engine) withLLMTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.llmTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.llmTimeout)
}

func (e *Engine) isCancel(text string) bool {
	for _, w := range e.cancelWords {
		if strings.EqualFold(text, w) {
			return true
		}
	}
	return false
}

// parseRecipient accepts a bare address or "Name <address>" and returns the
// bare address.
func parseRecipient(text string) (string, error) {
	if !strings.Contains(text, "@") {
		return "", &InputValidationError{Phase: PhaseAwaitingRecipient, Reason: "missing @"}
	}
	addr, err := msgmail.ParseAddress(text)
	if err != nil {
		return "", &InputValidationError{Phase: PhaseAwaitingRecipient, Reason: err.Error()}
	}
	at := strings.LastIndex(addr.Address, "@")
	if at <= 0 || at == len(addr.Address)-1 {
		return "", &InputValidationError{Phase: PhaseAwaitingRecipient, Reason: "incomplete address"}
	}
	return addr.Address, nil
}

func parseSelection(text string, count int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, &InputValidationError{Phase: PhaseAwaitingSelection, Reason: "not a number"}
	}
	if n < 1 || n > count {
		return 0, &InputValidationError{Phase: PhaseAwaitingSelection, Reason: fmt.Sprintf("%d is outside 1..%d", n, count)}
	}
	return n, nil
}
