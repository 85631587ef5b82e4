// Package chat runs the conversation pipeline: transcript persistence,
// memory extraction, context injection, and the generation call.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/quietriver/sage/internal/ai"
	"github.com/quietriver/sage/internal/engine"
	"github.com/quietriver/sage/internal/model"
	"github.com/quietriver/sage/internal/store"
)

const (
	// historyWindow bounds how much transcript is replayed to the model.
	historyWindow = 120
	// contextLimit is how many memory lines per scope get injected.
	contextLimit = 8
	// maxConcurrentGenerations caps in-flight model calls so a burst of
	// chat turns cannot exhaust the upstream quota or local sockets.
	maxConcurrentGenerations = 4
)

const systemPrompt = `You are Sage, a calm and practical coaching companion.
Listen closely, reflect what you hear, and offer one small concrete step at a time.
Never diagnose; encourage professional help for anything clinical.`

// Pipeline orchestrates one chat turn end to end. Memory failures degrade
// personalization but never fail the turn; only transcript persistence and
// the generation call itself are load-bearing.
type Pipeline struct {
	store     *store.Store
	engine    *engine.Engine
	generator ai.Generator
	sem       *semaphore.Weighted
}

// NewPipeline wires the pipeline.
func NewPipeline(s *store.Store, e *engine.Engine, g ai.Generator) *Pipeline {
	return &Pipeline{
		store:     s,
		engine:    e,
		generator: g,
		sem:       semaphore.NewWeighted(maxConcurrentGenerations),
	}
}

// Respond handles one user turn: persist it, extract memories, inject
// context, generate, persist and return the reply.
func (p *Pipeline) Respond(ctx context.Context, subjectID, message string) (*model.ChatMessage, error) {
	if subjectID == "" || strings.TrimSpace(message) == "" {
		return nil, errors.Wrap(model.ErrInvalidArgument, "subject id and message are required")
	}

	if _, err := p.store.CreateChatMessage(ctx, subjectID, "user", message); err != nil {
		return nil, err
	}

	// Advisory: a failed extraction pass must not block the reply.
	if err := p.engine.OnUserTurn(ctx, subjectID, message); err != nil {
		slog.Warn("memory extraction failed", "subject", subjectID, "error", err)
	}

	memCtx, err := p.engine.Context(ctx, subjectID, contextLimit)
	if err != nil {
		slog.Warn("memory context unavailable", "subject", subjectID, "error", err)
		memCtx = &store.MemoryContext{}
	}

	history, err := p.store.ListChatMessages(ctx, subjectID, historyWindow)
	if err != nil {
		return nil, err
	}

	messages := p.buildMessages(ctx, subjectID, memCtx, history)

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	reply, err := p.generator.Chat(ctx, messages)
	p.sem.Release(1)
	if err != nil {
		return nil, errors.Wrap(err, "generate reply")
	}

	return p.store.CreateChatMessage(ctx, subjectID, "assistant", reply)
}

// History returns the subject's transcript in chronological order.
func (p *Pipeline) History(ctx context.Context, subjectID string) ([]model.ChatMessage, error) {
	return p.store.ListChatMessages(ctx, subjectID, historyWindow)
}

// ClearHistory wipes the transcript; with clearMemory it also forgets the
// subject's non-pinned memories.
func (p *Pipeline) ClearHistory(ctx context.Context, subjectID string, clearMemory bool) error {
	if _, err := p.store.DeleteChatMessages(ctx, subjectID); err != nil {
		return err
	}
	if clearMemory {
		return p.engine.ForgetOnClear(ctx, subjectID)
	}
	return nil
}

func (p *Pipeline) buildMessages(ctx context.Context, subjectID string, memCtx *store.MemoryContext, history []model.ChatMessage) []ai.Message {
	var sb strings.Builder
	sb.WriteString(systemPrompt)

	if subject, err := p.store.GetSubject(ctx, subjectID); err == nil && subject.Goal != "" {
		fmt.Fprintf(&sb, "\n\nTheir stated goal: %s.", subject.Goal)
	}
	if len(memCtx.Global) > 0 {
		sb.WriteString("\n\nHouse knowledge:")
		for _, line := range memCtx.Global {
			sb.WriteString("\n- " + line)
		}
	}
	if len(memCtx.Subject) > 0 {
		sb.WriteString("\n\nWhat you remember about this person:")
		for _, line := range memCtx.Subject {
			sb.WriteString("\n- " + line)
		}
	}

	messages := []ai.Message{{Role: "system", Content: sb.String()}}
	for _, m := range history {
		messages = append(messages, ai.Message{Role: m.Role, Content: m.Content})
	}
	return messages
}
