package vtu

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/billbridge/billbridge-api/internal/domain/provider"
)

// FailureHook is invoked after each failed provider attempt. It is
// best-effort: a panic or slow hook must not disturb the fallback loop.
type FailureHook func(p provider.Provider, err error)

// Executor drives one operation across an ordered provider sequence,
// returning the first success. It never touches the wallet; the coordinator
// owns all financial state.
type Executor struct {
	client         Client
	attemptTimeout time.Duration
}

func NewExecutor(client Client, attemptTimeout time.Duration) *Executor {
	if attemptTimeout <= 0 {
		attemptTimeout = 10 * time.Second
	}
	return &Executor{client: client, attemptTimeout: attemptTimeout}
}

// Execute tries providers in order until one succeeds. An attempt fails when
// the call returns an error, exceeds the per-attempt timeout, or reports
// Success=false. When every provider fails the returned error is an
// *ExhaustedError carrying each attempt's cause.
func (e *Executor) Execute(ctx context.Context, providers []provider.Provider, req OperationRequest, onFailure FailureHook) (Result, *provider.Provider, error) {
	var attempts []AttemptError

	for i := range providers {
		p := providers[i]
		if !p.IsActive {
			continue
		}

		result, err := e.attempt(ctx, p, req)
		if err == nil {
			return result, &p, nil
		}

		attempts = append(attempts, AttemptError{
			ProviderID:   p.ID,
			ProviderName: p.Name,
			Err:          err,
		})
		log.Warn().
			Str("provider", p.Name).
			Str("category", string(req.Category)).
			Err(err).
			Msg("provider attempt failed, falling back")

		runFailureHook(onFailure, p, err)
	}

	return Result{}, nil, &ExhaustedError{Attempts: len(attempts), Errors: attempts}
}

func (e *Executor) attempt(ctx context.Context, p provider.Provider, req OperationRequest) (Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()

	result, err := e.client.Execute(attemptCtx, p, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, errors.New("provider attempt timed out")
		}
		return Result{}, err
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "provider returned failure"
		}
		return Result{}, errors.New(msg)
	}
	return result, nil
}

func runFailureHook(hook FailureHook, p provider.Provider, err error) {
	if hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("provider", p.Name).Msg("failure hook panicked")
		}
	}()
	hook(p, err)
}
