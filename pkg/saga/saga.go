// Package saga runs an ordered list of named steps inside one database
// transaction. A failing step aborts the remaining steps and rolls back the
// ones already applied.
package saga

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/packlist-backend/pkg/errors"
	"github.com/angelmondragon/packlist-backend/pkg/logger"
)

// StepCommit labels failures raised while committing after every step succeeded.
const StepCommit = "commit"

// StepFunc performs one step against the open transaction.
type StepFunc func(ctx context.Context, tx *gorm.DB) error

type Step struct {
	Name string
	Run  StepFunc
}

// Saga is an ordered list of dependent steps for one operation.
type Saga struct {
	Operation string
	steps     []Step
}

func New(operation string) *Saga {
	return &Saga{Operation: operation}
}

// Then appends a step. Steps run strictly in the order they were added.
func (s *Saga) Then(name string, fn StepFunc) *Saga {
	s.steps = append(s.steps, Step{Name: name, Run: fn})
	return s
}

func (s *Saga) StepNames() []string {
	names := make([]string, 0, len(s.steps))
	for _, step := range s.steps {
		names = append(names, step.Name)
	}
	return names
}

// TxRunner is satisfied by *db.Client.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Recorder is satisfied by *metrics.SagaMetrics.
type Recorder interface {
	ObserveDuration(operation string, duration time.Duration)
	IncSuccess(operation string)
	IncFailure(operation, step string)
}

type Runner struct {
	db      TxRunner
	metrics Recorder
	logg    *logger.Logger
}

func NewRunner(db TxRunner, metrics Recorder, logg *logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("saga runner requires a transaction runner")
	}
	return &Runner{db: db, metrics: metrics, logg: logg}, nil
}

// Run executes every step of s in one transaction. The returned error carries
// details {"step": name} naming the step that aborted the saga.
func (r *Runner) Run(ctx context.Context, s *Saga) error {
	if s == nil || len(s.steps) == 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, "saga has no steps")
	}

	start := time.Now()
	failed := ""
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, step := range s.steps {
			if err := ctx.Err(); err != nil {
				failed = step.Name
				return err
			}
			if err := step.Run(ctx, tx); err != nil {
				failed = step.Name
				return err
			}
			r.debug(ctx, s.Operation, step.Name)
		}
		return nil
	})
	if r.metrics != nil {
		r.metrics.ObserveDuration(s.Operation, time.Since(start))
	}

	if err != nil {
		if failed == "" {
			failed = StepCommit
		}
		if r.metrics != nil {
			r.metrics.IncFailure(s.Operation, failed)
		}
		return withStep(err, failed)
	}

	if r.metrics != nil {
		r.metrics.IncSuccess(s.Operation)
	}
	return nil
}

func (r *Runner) debug(ctx context.Context, operation, step string) {
	if r.logg == nil {
		return
	}
	r.logg.Debug(r.logg.WithSagaStep(ctx, operation, step), "saga.step.completed")
}

func withStep(err error, step string) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pack store operation failed").
			WithDetails(map[string]any{"step": step})
	}

	switch details := typed.Details().(type) {
	case nil:
		typed.WithDetails(map[string]any{"step": step})
	case map[string]any:
		if _, ok := details["step"]; !ok {
			details["step"] = step
		}
	}
	return err
}

// StepOf returns the step recorded on err by Run, if any.
func StepOf(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return ""
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return ""
	}
	step, _ := details["step"].(string)
	return step
}
