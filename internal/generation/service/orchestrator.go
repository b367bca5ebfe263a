// Package service runs generation requests end to end: guard, prompt,
// model calls with fallback, parse and history updates.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	entdomain "github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/generation/llm"
	"github.com/sitecraft-ai/sitecraft-backend/internal/generation/parser"
	"github.com/sitecraft-ai/sitecraft-backend/internal/generation/prompt"
	"github.com/sitecraft-ai/sitecraft-backend/internal/logging"
	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/domain"
	wsservice "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/service"
)

// Sessions is the view of live sessions the orchestrator needs.
type Sessions interface {
	Workspace(uid string) (*wsservice.Workspace, error)
	Profile(uid string) (entdomain.UserProfile, error)
	FeatureAllowed(uid, feature string) bool
	SetCredits(uid string, n int)
}

// Models resolves and calls models.
type Models interface {
	Chain(selected string, maxRetries int) []string
	Resolve(model string, personal map[string]string) (llm.Target, error)
	Generate(ctx context.Context, t llm.Target, req llm.Request) (string, error)
}

// CreditMeter charges one generation.
type CreditMeter interface {
	DeductCredit(ctx context.Context, uid string) (int, error)
}

type Options struct {
	MaxRetries      int
	Backoff         time.Duration
	Timeout         time.Duration
	Temperature     float32
	MaxOutputTokens int
	HistoryWindow   int
}

type Request struct {
	Prompt      string
	Attachments []prompt.Attachment
	SafeMode    bool
}

// Outcome is the terminal result of one generation.
type Outcome struct {
	State       State          `json:"state"`
	UserMessage domain.Message `json:"user_message"`
	Reply       domain.Message `json:"reply"`
	Model       string         `json:"model,omitempty"`
	Attempts    int            `json:"attempts"`
	Parse       parser.Outcome `json:"parse,omitempty"`
	Credits     *int           `json:"credits,omitempty"`
}

type Orchestrator struct {
	sessions Sessions
	models   Models
	credits  CreditMeter
	opt      Options

	mu      sync.Mutex
	flights map[string]*flight
}

func New(sessions Sessions, models Models, credits CreditMeter, opt Options) *Orchestrator {
	if opt.HistoryWindow <= 0 {
		opt.HistoryWindow = prompt.DefaultHistoryWindow
	}
	if opt.MaxRetries < 0 {
		opt.MaxRetries = 0
	}
	return &Orchestrator{
		sessions: sessions,
		models:   models,
		credits:  credits,
		opt:      opt,
		flights:  make(map[string]*flight),
	}
}

// Generate runs one generation for uid and blocks until it reaches a
// terminal state. Guard failures return an error and leave history
// untouched; every later failure is reported as a history message.
func (o *Orchestrator) Generate(ctx context.Context, uid string, req Request) (Outcome, error) {
	log := logging.NewLogger(ctx)

	ws, err := o.sessions.Workspace(uid)
	if err != nil {
		return Outcome{}, ErrRequireLogin
	}
	instruction := strings.TrimSpace(req.Prompt)
	if instruction == "" {
		return Outcome{}, ErrEmptyPrompt
	}
	profile, err := o.sessions.Profile(uid)
	if err != nil {
		return Outcome{}, ErrRequireLogin
	}

	snap := ws.GenerationSnapshot()
	selected := snap.Settings.SelectedModel
	if profile.Credits <= 0 && !llm.HasPersonalKey(selected, snap.Settings.ModelKeys) {
		return Outcome{}, ErrNoCredits
	}

	f, genCtx, err := o.begin(ctx, uid)
	if err != nil {
		return Outcome{}, err
	}
	defer o.end(uid, f)

	// history writes must survive a cancelled request
	bg := context.WithoutCancel(ctx)

	userMsg, err := ws.AppendMessage(bg, snap.ProjectID, domain.Message{
		Role:    domain.RoleUser,
		Content: instruction,
		State:   domain.StateProvisional,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("append user message: %w", err)
	}
	out := Outcome{UserMessage: userMsg}

	var features []string
	for _, name := range snap.Settings.EnabledFeatures() {
		if o.sessions.FeatureAllowed(uid, name) {
			features = append(features, name)
		}
	}
	p := prompt.Compose(prompt.Input{
		Instruction:   instruction,
		Files:         snap.Files,
		History:       snap.History,
		Attachments:   req.Attachments,
		Features:      features,
		SafeMode:      req.SafeMode,
		HistoryWindow: o.opt.HistoryWindow,
	})

	var (
		raw     string
		target  llm.Target
		lastErr error
		ok      bool
		metered bool
	)
	chain := o.models.Chain(selected, o.opt.MaxRetries)
	for i, model := range chain {
		if i > 0 && out.Attempts > 0 {
			o.setState(f, StateRetrying, model)
			if !sleep(genCtx, o.opt.Backoff) {
				break
			}
		}

		t, err := o.models.Resolve(model, snap.Settings.ModelKeys)
		if err != nil {
			lastErr = err
			log.LogWarn("generation.resolve", "model unavailable", "uid", uid, "model", model, "error", err)
			continue
		}
		// platform keys are metered; a fallback tier must not bypass the credit check
		if !t.Personal && profile.Credits <= 0 {
			lastErr, metered = ErrNoCredits, true
			log.LogWarn("generation.resolve", "skipping metered model", "uid", uid, "model", model)
			continue
		}

		o.setState(f, stateFor(out.Attempts), model)
		out.Attempts++
		raw, err = o.models.Generate(genCtx, t, llm.Request{
			System:          p.System,
			Prompt:          p.User,
			Temperature:     o.opt.Temperature,
			MaxOutputTokens: o.opt.MaxOutputTokens,
			JSON:            true,
		})
		if genCtx.Err() != nil {
			break
		}
		if err != nil {
			lastErr = err
			log.LogWarn("generation.attempt", "model call failed", "uid", uid, "model", model, "attempt", out.Attempts, "error", err)
			continue
		}
		target, ok = t, true
		break
	}

	// the outcome is fixed here; a cancel that lost the race is ignored
	cancelled := o.settle(f)
	if !cancelled && errors.Is(genCtx.Err(), context.Canceled) {
		cancelled = true
	}

	switch {
	case cancelled:
		out.State = StateCancelled
		out.Reply, err = o.reply(bg, ws, snap.ProjectID, userMsg.ID, domain.Message{Role: domain.RoleModel, Content: StoppedMessage})
		log.LogInfo("generation.cancel", "generation stopped", "uid", uid, "attempts", out.Attempts)

	case out.Attempts == 0:
		if rbErr := ws.RollbackMessage(bg, snap.ProjectID, userMsg.ID); rbErr != nil {
			log.LogError("generation.rollback", rbErr, "uid", uid)
		}
		if metered {
			return Outcome{}, ErrNoCredits
		}
		return Outcome{}, fmt.Errorf("%w: %v", ErrNoModelAvailable, lastErr)

	case !ok:
		out.State = StateFailed
		if lastErr == nil {
			lastErr = genCtx.Err()
		}
		log.LogError("generation.fail", lastErr, "uid", uid, "attempts", out.Attempts)
		out.Reply, err = o.reply(bg, ws, snap.ProjectID, userMsg.ID, domain.Message{
			Role:    domain.RoleModel,
			Content: fmt.Sprintf(failureFormat, out.Attempts),
		})

	default:
		out.State = StateSucceeded
		out.Model = target.Model
		res := parser.Parse(raw)
		out.Parse = res.Outcome

		msg := domain.Message{Role: domain.RoleModel, Content: res.Message}
		for _, file := range res.Files {
			msg.Files = append(msg.Files, domain.GeneratedFile{Name: file.Name, Content: file.Content})
		}
		if msg.Content == "" && len(msg.Files) > 0 {
			msg.Content = fmt.Sprintf("Proposed changes to %d file(s).", len(msg.Files))
		}
		out.Reply, err = o.reply(bg, ws, snap.ProjectID, userMsg.ID, msg)

		// charged only once the reply is in history
		if err == nil && res.Produced() && !target.Personal {
			if n, dErr := o.credits.DeductCredit(bg, uid); dErr != nil {
				log.LogError("generation.deduct", dErr, "uid", uid)
			} else {
				o.sessions.SetCredits(uid, n)
				out.Credits = &n
			}
		}
		log.LogInfo("generation.done", "generation finished",
			"uid", uid, "model", target.Model, "attempts", out.Attempts, "parse", res.Outcome, "files", len(res.Files))
	}
	return out, err
}

// Cancel aborts uid's in-flight generation. It reports whether there
// was one to cancel.
func (o *Orchestrator) Cancel(uid string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	f, ok := o.flights[uid]
	if !ok || f.done {
		return false
	}
	f.cancelled = true
	f.cancel()
	return true
}

// Status reports the state of uid's in-flight generation, or idle.
func (o *Orchestrator) Status(uid string) (State, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	f, ok := o.flights[uid]
	if !ok {
		return StateIdle, ""
	}
	return f.state, f.model
}

func (o *Orchestrator) begin(ctx context.Context, uid string) (*flight, context.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.flights[uid]; busy {
		return nil, nil, ErrGenerationInProgress
	}

	var cancelTimeout context.CancelFunc = func() {}
	if o.opt.Timeout > 0 {
		ctx, cancelTimeout = context.WithTimeout(ctx, o.opt.Timeout)
	}
	genCtx, cancel := context.WithCancel(ctx)

	f := &flight{
		id:    uuid.NewString(),
		state: StateRequesting,
		cancel: func() {
			cancel()
			cancelTimeout()
		},
	}
	o.flights[uid] = f
	return f, genCtx, nil
}

func (o *Orchestrator) end(uid string, f *flight) {
	f.cancel()
	o.mu.Lock()
	defer o.mu.Unlock()
	if cur, ok := o.flights[uid]; ok && cur.id == f.id {
		delete(o.flights, uid)
	}
}

// settle marks f done and reports whether it was cancelled first.
func (o *Orchestrator) settle(f *flight) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	f.done = true
	return f.cancelled
}

func (o *Orchestrator) setState(f *flight, s State, model string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	f.state = s
	f.model = model
}

// reply appends the model message and commits the user message.
func (o *Orchestrator) reply(ctx context.Context, ws *wsservice.Workspace, projectID, userMsgID string, msg domain.Message) (domain.Message, error) {
	m, err := ws.AppendMessage(ctx, projectID, msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("append reply: %w", err)
	}
	if err := ws.CommitMessage(ctx, projectID, userMsgID); err != nil {
		return m, fmt.Errorf("commit user message: %w", err)
	}
	return m, nil
}

func stateFor(attempts int) State {
	if attempts == 0 {
		return StateRequesting
	}
	return StateRetrying
}

// sleep waits d or until ctx ends. It reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
