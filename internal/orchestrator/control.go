package orchestrator

import (
	"context"
	"fmt"

	"github.com/dkurenkov/vidpipe/internal/domain"
)

// Control-операции глобальной state machine:
//
//	STOPPED --Start--> RUNNING --Pause--> PAUSED
//	RUNNING <--Resume-- PAUSED
//	любое состояние --Shutdown--> STOPPED
//
// Состояние хранится в settings store и переживает рестарт процесса:
// после перезапуска daemon продолжает с той фазы, в которой его
// оставил оператор.

// State возвращает текущее глобальное состояние.
func (o *Orchestrator) State(ctx context.Context) (domain.OrchestrationState, error) {
	var state domain.OrchestrationState
	var err error

	if state.Running, err = o.flags.GetBool(ctx, domain.SettingOrchestrationRunning, false); err != nil {
		return state, fmt.Errorf("read running flag: %w", err)
	}
	if state.Paused, err = o.flags.GetBool(ctx, domain.SettingOrchestrationPaused, false); err != nil {
		return state, fmt.Errorf("read paused flag: %w", err)
	}
	if state.QueuePaused, err = o.flags.GetBool(ctx, domain.SettingQueuePaused, false); err != nil {
		return state, fmt.Errorf("read queue_paused flag: %w", err)
	}
	return state, nil
}

// Start переводит оркестрацию STOPPED → RUNNING.
func (o *Orchestrator) Start(ctx context.Context) error {
	state, err := o.State(ctx)
	if err != nil {
		return err
	}
	if state.Running {
		return ErrAlreadyStarted
	}

	if err := o.flags.SetBool(ctx, domain.SettingOrchestrationRunning, true); err != nil {
		return err
	}
	if err := o.flags.SetBool(ctx, domain.SettingOrchestrationPaused, false); err != nil {
		return err
	}

	o.logger.Info("orchestration started")
	o.Wake()
	return nil
}

// Pause переводит оркестрацию RUNNING → PAUSED.
// In-flight стадии дорабатывают, новые jobs не выбираются.
func (o *Orchestrator) Pause(ctx context.Context) error {
	state, err := o.State(ctx)
	if err != nil {
		return err
	}
	if !state.Running {
		return ErrNotStarted
	}
	if state.Paused {
		return ErrAlreadyPaused
	}

	if err := o.flags.SetBool(ctx, domain.SettingOrchestrationPaused, true); err != nil {
		return err
	}

	o.logger.Info("orchestration paused")
	return nil
}

// Resume переводит оркестрацию PAUSED → RUNNING.
func (o *Orchestrator) Resume(ctx context.Context) error {
	state, err := o.State(ctx)
	if err != nil {
		return err
	}
	if !state.Running {
		return ErrNotStarted
	}
	if !state.Paused {
		return ErrNotPaused
	}

	if err := o.flags.SetBool(ctx, domain.SettingOrchestrationPaused, false); err != nil {
		return err
	}

	o.logger.Info("orchestration resumed")
	o.Wake()
	return nil
}

// Shutdown переводит оркестрацию в STOPPED из любого состояния.
// Идемпотентен.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if err := o.flags.SetBool(ctx, domain.SettingOrchestrationRunning, false); err != nil {
		return err
	}
	if err := o.flags.SetBool(ctx, domain.SettingOrchestrationPaused, false); err != nil {
		return err
	}

	o.logger.Info("orchestration shut down")
	return nil
}
