// Package service runs conversation turns and collection indexing on top of
// the graph, tool, index and checkpoint packages.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/docchat/internal/checkpoint"
	"github.com/raphaelgruber/docchat/internal/graph"
	"github.com/raphaelgruber/docchat/internal/metrics"
	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/tools"
)

// TurnResult is the outcome of one completed turn.
type TurnResult struct {
	ThreadID string
	Answer   string
	Version  int64
	Trace    *graph.Trace
}

// TurnController answers questions against a collection, one turn at a time
// per thread. Each completed turn is committed as one checkpoint.
type TurnController struct {
	*Threads

	primary *graph.Runner
	ask     *graph.Runner
	metrics *metrics.Collector
}

// NewTurnController wires the primary and document sub-agent graphs. deps
// is copied; its SubAgent is replaced by the controller's own.
func NewTurnController(
	deps tools.Dependencies,
	model graph.ChatModel,
	store checkpoint.Store,
	locker checkpoint.Locker,
	opts graph.Options,
	logger *slog.Logger,
	mc *metrics.Collector,
) (*TurnController, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &TurnController{Threads: NewThreads(store, locker, logger), metrics: mc}

	deps.SubAgent = askAgent{c}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	if deps.Metrics == nil {
		deps.Metrics = mc
	}

	primaryTools, err := tools.NewRegistry(tools.PrimaryTools(&deps)...)
	if err != nil {
		return nil, fmt.Errorf("primary tools: %w", err)
	}
	askTools, err := tools.NewRegistry(tools.AskTools(&deps)...)
	if err != nil {
		return nil, fmt.Errorf("ask tools: %w", err)
	}

	c.primary, err = graph.NewRunner(graph.PrimaryGraph(), model,
		tools.NewDispatcher(primaryTools, logger, mc), opts, logger)
	if err != nil {
		return nil, err
	}
	c.ask, err = graph.NewRunner(graph.AskGraph(), model,
		tools.NewDispatcher(askTools, logger, mc), opts, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Answer runs one turn and returns the answer.
func (c *TurnController) Answer(ctx context.Context, userID, collectionID, question string) (string, error) {
	res, err := c.Turn(ctx, userID, collectionID, question)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

// Turn runs one turn on the primary thread of (userID, collectionID). Every
// error is a *TurnError. Nothing is committed unless the primary graph
// reaches its answer, including the ask thread written by query_tool.
func (c *TurnController) Turn(ctx context.Context, userID, collectionID, question string) (res *TurnResult, err error) {
	key, err := models.NewCollectionKey(userID, collectionID)
	if err != nil {
		return nil, &TurnError{Err: err}
	}
	threadID := models.ThreadID(key, models.VariantPrimary)
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &TurnError{ThreadID: threadID, Err: ErrEmptyQuestion}
	}
	defer c.metrics.Track(metrics.OpTurn)(&err)

	release, err := c.locker.Acquire(ctx, threadID)
	if err != nil {
		return nil, &TurnError{ThreadID: threadID, Err: err}
	}
	defer c.release(ctx, threadID, release)

	start := time.Now()
	log := c.logger.With("thread_id", threadID)

	cp, err := c.load(ctx, threadID, key, models.VariantPrimary)
	if err != nil {
		return nil, &TurnError{ThreadID: threadID, Err: err}
	}
	st := seed(cp, key, question)

	runCtx, pending := withStaged(ctx)
	trace, err := c.primary.Run(runCtx, &st)
	if err != nil {
		var stepErr *graph.StepError
		var step graph.Step
		if errors.As(err, &stepErr) {
			step = stepErr.Step
		}
		log.Error("turn failed", "step", step, "steps", len(trace.Steps), "error", err)
		return nil, &TurnError{ThreadID: threadID, Step: step, Err: err}
	}

	// Sub-agent threads go first; the primary commit marks the turn done.
	for _, askCP := range pending.all() {
		if err := c.commit(ctx, askCP); err != nil {
			return nil, &TurnError{ThreadID: threadID, Step: graph.StepAnswer, Err: err}
		}
	}

	cp.State = st
	cp.Step = string(graph.StepAnswer)
	if err := c.commit(ctx, cp); err != nil {
		return nil, &TurnError{ThreadID: threadID, Step: graph.StepAnswer, Err: err}
	}

	log.Info("turn complete",
		"version", cp.Version,
		"steps", len(trace.Steps),
		"tools", strings.Join(trace.Tools, ","),
		"duration_ms", time.Since(start).Milliseconds())
	return &TurnResult{ThreadID: threadID, Answer: st.Answer, Version: cp.Version, Trace: trace}, nil
}

// load returns the stored checkpoint, or a fresh one at version zero.
func (c *TurnController) load(ctx context.Context, threadID string, key models.CollectionKey, variant models.ThreadVariant) (cp *models.ThreadCheckpoint, err error) {
	defer c.metrics.Track(metrics.OpCheckpointLoad)(&err)

	cp, err = c.store.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp == nil {
		cp = &models.ThreadCheckpoint{ThreadID: threadID, Key: key, Variant: variant}
	}
	return cp, nil
}

func (c *TurnController) commit(ctx context.Context, cp *models.ThreadCheckpoint) (err error) {
	defer c.metrics.Track(metrics.OpCheckpointCommit)(&err)
	if err := c.store.Commit(ctx, cp); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// seed prepares the state for a new turn from the thread's last checkpoint.
// The per-turn fields start empty; history carries over.
func seed(cp *models.ThreadCheckpoint, key models.CollectionKey, question string) models.ConversationState {
	st := cp.State.Clone()
	st.Key = key
	st.Question = question
	st.Answer = ""
	st.LastResponse = nil
	return st
}
