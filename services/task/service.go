package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tasktracker/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

//go:generate mockgen -source=service.go -destination=mock_store_test.go -package=task

var tracer = otel.Tracer("tasktracker/services/task")

// Store is the single source of truth for task records and their lifecycle.
type Store interface {
	Create(ctx context.Context, in Input) (*Task, error)
	Update(ctx context.Context, id int64, in Input) (*Task, error)
	Get(ctx context.Context, id int64) (*Task, error)
	List(ctx context.Context, filter Filter, sortBy SortBy) ([]Task, error)
	Start(ctx context.Context, id int64) (*Task, error)
	Pause(ctx context.Context, id int64) (*Task, error)
	End(ctx context.Context, id int64) (*Task, error)
	Delete(ctx context.Context, id int64, reason string) (*Task, error)
	Restore(ctx context.Context, id int64) (*Task, error)
	Reorder(ctx context.Context, orderedIDs []int64) ([]Task, error)
	History(ctx context.Context, id int64) ([]HistoryEntry, error)
}

// Clock lets tests pin the time stamped on tasks.
type Clock func() time.Time

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	repo  Repository
	cache ListCache
	now   Clock

	// writeMu serializes mutations so display_order stays dense on databases
	// without row locks and across concurrent creates.
	writeMu sync.Mutex
	// version changes on every committed mutation; list loads started before a
	// write are never shared with callers that arrive after it.
	version atomic.Int64
	group   singleflight.Group
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Cache ListCache `optional:"true"`
	Clock Clock     `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		db:    p.DB,
		node:  p.Node,
		repo:  NewRepository(p.DB),
		cache: p.Cache,
		now:   p.Clock,
	}
	if s.cache == nil {
		s.cache = noopCache{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) Create(ctx context.Context, in Input) (task *Task, err error) {
	ctx, span := tracer.Start(ctx, "task.Create")
	defer func() { finish(span, err) }()

	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.stamp()
	task = &Task{
		Name:               in.Name,
		Detail:             in.Detail,
		LimitDate:          in.LimitDate,
		ScheduledStartDate: in.ScheduledStartDate,
		ScheduledEndDate:   in.ScheduledEndDate,
		IsNotMain:          in.IsNotMain != nil && *in.IsNotMain,
		Status:             StatusTodo,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.mutate(ctx, func(repo Repository) error {
		count, err := repo.CountActive(ctx)
		if err != nil {
			return fmt.Errorf("count active tasks: %w", err)
		}
		task.DisplayOrder = int(count)

		if err := repo.Create(ctx, task); err != nil {
			return fmt.Errorf("create task: %w", err)
		}

		return s.record(ctx, repo, task.ID, EventCreated, now, map[string]any{
			"name":          task.Name,
			"display_order": task.DisplayOrder,
		})
	})
	if err != nil {
		logger(ctx).Error("failed to create task", zap.Error(err))
		return nil, err
	}

	logger(ctx).Info("task created", zap.Int64("task_id", task.ID), zap.Int("display_order", task.DisplayOrder))
	return task, nil
}

func (s *Service) Update(ctx context.Context, id int64, in Input) (task *Task, err error) {
	ctx, span := tracer.Start(ctx, "task.Update", trace.WithAttributes(attribute.Int64("task.id", id)))
	defer func() { finish(span, err) }()

	in.normalize()

	err = s.mutate(ctx, func(repo Repository) error {
		t, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}

		if err := in.Validate(); err != nil {
			return err
		}

		now := s.stamp()
		t.Name = in.Name
		t.Detail = in.Detail
		t.LimitDate = in.LimitDate
		t.ScheduledStartDate = in.ScheduledStartDate
		t.ScheduledEndDate = in.ScheduledEndDate
		if in.IsNotMain != nil {
			t.IsNotMain = *in.IsNotMain
		}
		t.UpdatedAt = now

		if err := repo.Save(ctx, t); err != nil {
			return fmt.Errorf("save task %d: %w", id, err)
		}

		task = t
		return s.record(ctx, repo, id, EventUpdated, now, map[string]any{"name": t.Name})
	})
	if err != nil {
		return nil, err
	}

	logger(ctx).Info("task updated", zap.Int64("task_id", id))
	return task, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Task, error) {
	task, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("task not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

func (s *Service) List(ctx context.Context, filter Filter, sortBy SortBy) (tasks []Task, err error) {
	ctx, span := tracer.Start(ctx, "task.List", trace.WithAttributes(
		attribute.String("task.filter", string(filter)),
		attribute.String("task.sort_by", string(sortBy)),
	))
	defer func() { finish(span, err) }()

	statuses := filter.Statuses()
	if statuses == nil {
		return nil, errutil.ValidationFailed(fmt.Sprintf("unknown filter %q", filter), nil)
	}
	if !sortBy.Valid() {
		return nil, errutil.ValidationFailed("sort_by must be display_order or limit_date", nil)
	}

	generation := s.cache.Generation(ctx)
	if cached, ok := s.cache.Get(ctx, generation, filter, sortBy); ok {
		return cached, nil
	}

	key := fmt.Sprintf("%d:%d:%s:%s", s.version.Load(), generation, filter, sortBy)
	v, err, _ := s.group.Do(key, func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		loaded, err := s.repo.List(loadCtx, ListParams{Statuses: statuses, SortBy: sortBy, Filter: filter})
		if err != nil {
			return nil, fmt.Errorf("list %s tasks: %w", filter, err)
		}
		s.cache.Set(loadCtx, generation, filter, sortBy, loaded)
		return loaded, nil
	})
	if err != nil {
		logger(ctx).Error("failed to list tasks", zap.String("filter", string(filter)), zap.Error(err))
		return nil, err
	}

	shared := v.([]Task)
	tasks = make([]Task, len(shared))
	copy(tasks, shared)
	return tasks, nil
}

func (s *Service) Start(ctx context.Context, id int64) (*Task, error) {
	return s.transition(ctx, id, ActionStart, func(t *Task, now time.Time) map[string]any {
		if t.ActualStartDate == nil {
			t.ActualStartDate = &now
		}
		return nil
	})
}

func (s *Service) Pause(ctx context.Context, id int64) (*Task, error) {
	return s.transition(ctx, id, ActionPause, func(*Task, time.Time) map[string]any {
		return nil
	})
}

// End completes a task. A task that was never started is force-completed:
// its actual start is stamped with the same instant as its end.
func (s *Service) End(ctx context.Context, id int64) (*Task, error) {
	return s.transition(ctx, id, ActionEnd, func(t *Task, now time.Time) map[string]any {
		if t.ActualStartDate == nil {
			t.ActualStartDate = &now
		}
		t.ActualEndDate = &now
		return nil
	})
}

// Delete is a soft delete; the row stays and can be restored.
func (s *Service) Delete(ctx context.Context, id int64, reason string) (*Task, error) {
	return s.transition(ctx, id, ActionDelete, func(t *Task, now time.Time) map[string]any {
		t.DeleteReason = emptyToNil(&reason)
		t.ActualEndDate = &now
		if t.DeleteReason == nil {
			return nil
		}
		return map[string]any{"delete_reason": *t.DeleteReason}
	})
}

func (s *Service) Restore(ctx context.Context, id int64) (*Task, error) {
	return s.transition(ctx, id, ActionRestore, func(t *Task, _ time.Time) map[string]any {
		t.ActualEndDate = nil
		t.DeleteReason = nil
		return nil
	})
}

// Reorder assigns display_order 0..n-1 following orderedIDs, which must name
// every active task exactly once.
func (s *Service) Reorder(ctx context.Context, orderedIDs []int64) (tasks []Task, err error) {
	ctx, span := tracer.Start(ctx, "task.Reorder", trace.WithAttributes(attribute.Int("task.count", len(orderedIDs))))
	defer func() { finish(span, err) }()

	seen := make(map[int64]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, dup := seen[id]; dup {
			return nil, errutil.ValidationFailed(fmt.Sprintf("task %d appears more than once in ordered_ids", id), nil)
		}
		seen[id] = struct{}{}
	}

	err = s.mutate(ctx, func(repo Repository) error {
		active, err := repo.List(ctx, ListParams{Statuses: FilterActive.Statuses(), SortBy: SortDisplayOrder, Filter: FilterActive})
		if err != nil {
			return fmt.Errorf("list active tasks: %w", err)
		}

		byID := make(map[int64]*Task, len(active))
		for i := range active {
			byID[active[i].ID] = &active[i]
		}
		for _, id := range orderedIDs {
			if _, ok := byID[id]; !ok {
				return errutil.ValidationFailed(fmt.Sprintf("task %d is not an active task", id), nil)
			}
		}
		if len(orderedIDs) != len(active) {
			return errutil.ValidationFailed(
				fmt.Sprintf("ordered_ids must list all %d active tasks, got %d", len(active), len(orderedIDs)), nil)
		}

		now := s.stamp()
		tasks = make([]Task, 0, len(orderedIDs))
		for position, id := range orderedIDs {
			t := byID[id]
			previous := t.DisplayOrder
			t.DisplayOrder = position
			t.UpdatedAt = now
			if err := repo.Save(ctx, t); err != nil {
				return fmt.Errorf("save task %d: %w", id, err)
			}
			if previous != position {
				if err := s.record(ctx, repo, id, EventReordered, now, map[string]any{"from": previous, "to": position}); err != nil {
					return err
				}
			}
			tasks = append(tasks, *t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger(ctx).Info("tasks reordered", zap.Int64s("ordered_ids", orderedIDs))
	return tasks, nil
}

func (s *Service) History(ctx context.Context, id int64) ([]HistoryEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	entries, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list history of task %d: %w", id, err)
	}
	return entries, nil
}

// transition applies a lifecycle action inside one transaction. apply sets the
// action's date fields and returns extra history details.
func (s *Service) transition(ctx context.Context, id int64, action Action, apply func(t *Task, now time.Time) map[string]any) (task *Task, err error) {
	ctx, span := tracer.Start(ctx, "task."+string(action), trace.WithAttributes(attribute.Int64("task.id", id)))
	defer func() { finish(span, err) }()

	var from Status
	err = s.mutate(ctx, func(repo Repository) error {
		t, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}

		from = t.Status
		if !from.Allows(action) {
			return transitionError(action, from)
		}

		now := s.stamp()
		details := apply(t, now)
		t.Status = action.Target()
		t.UpdatedAt = now

		joining := !from.IsActive() && t.Status.IsActive()
		leaving := from.IsActive() && !t.Status.IsActive()

		if joining {
			count, err := repo.CountActive(ctx)
			if err != nil {
				return fmt.Errorf("count active tasks: %w", err)
			}
			t.DisplayOrder = int(count)
		}

		if err := repo.Save(ctx, t); err != nil {
			return fmt.Errorf("save task %d: %w", id, err)
		}

		if leaving {
			if err := s.compact(ctx, repo); err != nil {
				return err
			}
		}

		if details == nil {
			details = map[string]any{}
		}
		details["from"] = from
		details["to"] = t.Status

		task = t
		return s.record(ctx, repo, id, eventFor(action), now, details)
	})
	if err != nil {
		if errutil.Is(err, errutil.StatusInvalidTransition) {
			logger(ctx).Warn("rejected task transition", zap.Int64("task_id", id), zap.String("action", string(action)), zap.String("status", string(from)))
		}
		return nil, err
	}

	logger(ctx).Info("task transitioned",
		zap.Int64("task_id", id),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(task.Status)),
	)
	return task, nil
}

func transitionError(action Action, status Status) error {
	var msg string
	switch {
	case action == ActionPause:
		msg = fmt.Sprintf("task is %s, only a doing task can be paused", status)
	case action == ActionRestore:
		msg = fmt.Sprintf("task is %s, only a completed or deleted task can be restored", status)
	case status == action.Target():
		msg = fmt.Sprintf("task is already %s", status)
	default:
		msg = fmt.Sprintf("cannot %s a task that is %s", action, status)
	}
	return errutil.InvalidTransition(msg, nil)
}

// compact renumbers the active tasks 0..n-1 keeping their relative order.
func (s *Service) compact(ctx context.Context, repo Repository) error {
	active, err := repo.List(ctx, ListParams{Statuses: FilterActive.Statuses(), SortBy: SortDisplayOrder, Filter: FilterActive})
	if err != nil {
		return fmt.Errorf("list active tasks: %w", err)
	}

	for i, t := range active {
		if t.DisplayOrder == i {
			continue
		}
		if err := repo.SetDisplayOrder(ctx, t.ID, i); err != nil {
			return fmt.Errorf("renumber task %d: %w", t.ID, err)
		}
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, fn func(repo Repository) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.repo.WithTrx(tx))
	})
	if err != nil {
		return err
	}

	s.version.Add(1)
	s.cache.Invalidate(ctx)
	return nil
}

func (s *Service) load(ctx context.Context, repo Repository, id int64) (*Task, error) {
	task, err := repo.GetForUpdate(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("task not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %d: %w", id, err)
	}
	return task, nil
}

func (s *Service) record(ctx context.Context, repo Repository, taskID int64, event EventType, at time.Time, details map[string]any) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode history details: %w", err)
	}

	entry := &HistoryEntry{
		ID:        s.node.Generate().String(),
		TaskID:    taskID,
		EventType: event,
		Details:   datatypes.JSON(raw),
		CreatedAt: at,
	}
	if err := repo.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("append %s history for task %d: %w", event, taskID, err)
	}
	return nil
}

// stamp is the current time as stored: UTC at microsecond precision, which
// every supported database round-trips exactly.
func (s *Service) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func logger(ctx context.Context) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return zap.L()
	}
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
