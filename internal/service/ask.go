package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/docchat/internal/graph"
	"github.com/raphaelgruber/docchat/internal/models"
)

var errOutsideTurn = errors.New("document sub-agent called outside a turn")

// askAgent runs the document sub-agent on the collection's ask thread. It
// is only reached from query_tool, so its thread is covered by the lock
// the primary turn already holds.
type askAgent struct {
	c *TurnController
}

// Ask answers question from docs. The ask thread's new state is staged on
// the running turn and committed only when that turn completes.
func (a askAgent) Ask(ctx context.Context, key models.CollectionKey, question string, docs []models.RetrievedDocument) (string, error) {
	pending, ok := stagedFrom(ctx)
	if !ok {
		return "", errOutsideTurn
	}
	threadID := models.ThreadID(key, models.VariantAsk)

	cp, ok := pending.get(threadID)
	if !ok {
		var err error
		cp, err = a.c.load(ctx, threadID, key, models.VariantAsk)
		if err != nil {
			return "", err
		}
	}
	st := seed(cp, key, strings.TrimSpace(question))
	st.Docs = docs

	trace, err := a.c.ask.Run(ctx, &st)
	if err != nil {
		return "", fmt.Errorf("document sub-agent: %w", err)
	}

	cp.State = st
	cp.Step = string(graph.StepAnswer)
	pending.put(cp)
	a.c.logger.Debug("sub-agent answered", "thread_id", threadID, "steps", len(trace.Steps), "tools", trace.Tools)
	return st.Answer, nil
}

type stagedKey struct{}

// staged collects checkpoints written by sub-agents during one turn.
// Tools run one at a time, so it needs no locking.
type staged struct {
	checkpoints map[string]*models.ThreadCheckpoint
	order       []string
}

func withStaged(ctx context.Context) (context.Context, *staged) {
	s := &staged{checkpoints: make(map[string]*models.ThreadCheckpoint)}
	return context.WithValue(ctx, stagedKey{}, s), s
}

func stagedFrom(ctx context.Context) (*staged, bool) {
	s, ok := ctx.Value(stagedKey{}).(*staged)
	return s, ok
}

func (s *staged) get(threadID string) (*models.ThreadCheckpoint, bool) {
	cp, ok := s.checkpoints[threadID]
	return cp, ok
}

func (s *staged) put(cp *models.ThreadCheckpoint) {
	if _, ok := s.checkpoints[cp.ThreadID]; !ok {
		s.order = append(s.order, cp.ThreadID)
	}
	s.checkpoints[cp.ThreadID] = cp
}

// all returns the staged checkpoints in the order they were first written.
func (s *staged) all() []*models.ThreadCheckpoint {
	out := make([]*models.ThreadCheckpoint, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.checkpoints[id])
	}
	return out
}
