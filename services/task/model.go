package task

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusTodo      Status = "todo"
	StatusDoing     Status = "doing"
	StatusCompleted Status = "completed"
	StatusDeleted   Status = "deleted"
)

func (s Status) String() string {
	switch s {
	case StatusTodo, StatusDoing, StatusCompleted, StatusDeleted:
		return string(s)
	default:
		return ""
	}
}

// IsActive reports whether the task belongs to the manually ordered list.
func (s Status) IsActive() bool {
	return s == StatusTodo || s == StatusDoing
}

type Action string

const (
	ActionStart   Action = "start"
	ActionPause   Action = "pause"
	ActionEnd     Action = "end"
	ActionDelete  Action = "delete"
	ActionRestore Action = "restore"
)

// Allows is the lifecycle table. Every (status, action) pair is listed so a
// new status or action cannot be added without deciding its transitions.
func (s Status) Allows(a Action) bool {
	switch s {
	case StatusTodo:
		switch a {
		case ActionStart, ActionEnd, ActionDelete:
			return true
		case ActionPause, ActionRestore:
			return false
		}
	case StatusDoing:
		switch a {
		case ActionStart, ActionPause, ActionEnd, ActionDelete:
			return true
		case ActionRestore:
			return false
		}
	case StatusCompleted:
		switch a {
		case ActionDelete, ActionRestore:
			return true
		case ActionStart, ActionPause, ActionEnd:
			return false
		}
	case StatusDeleted:
		switch a {
		case ActionRestore:
			return true
		case ActionStart, ActionPause, ActionEnd, ActionDelete:
			return false
		}
	}
	return false
}

// Target is the status a task ends up in after a permitted action.
func (a Action) Target() Status {
	switch a {
	case ActionStart:
		return StatusDoing
	case ActionPause, ActionRestore:
		return StatusTodo
	case ActionEnd:
		return StatusCompleted
	case ActionDelete:
		return StatusDeleted
	default:
		return ""
	}
}

type Filter string

const (
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
	FilterDeleted   Filter = "deleted"
)

func (f Filter) Statuses() []Status {
	switch f {
	case FilterActive:
		return []Status{StatusTodo, StatusDoing}
	case FilterCompleted:
		return []Status{StatusCompleted}
	case FilterDeleted:
		return []Status{StatusDeleted}
	default:
		return nil
	}
}

type SortBy string

const (
	// SortDefault is display order for active tasks, most recently finished
	// first for completed tasks and most recently deleted first for deleted ones.
	SortDefault      SortBy = ""
	SortDisplayOrder SortBy = "display_order"
	SortLimitDate    SortBy = "limit_date"
)

func (s SortBy) Valid() bool {
	switch s {
	case SortDefault, SortDisplayOrder, SortLimitDate:
		return true
	default:
		return false
	}
}

type Task struct {
	ID                 int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Name               string     `gorm:"column:name;type:varchar(255);not null"`
	Detail             *string    `gorm:"column:detail;type:text"`
	LimitDate          *time.Time `gorm:"column:limit_date"`
	ScheduledStartDate *time.Time `gorm:"column:scheduled_start_date"`
	ScheduledEndDate   *time.Time `gorm:"column:scheduled_end_date"`
	ActualStartDate    *time.Time `gorm:"column:actual_start_date"`
	ActualEndDate      *time.Time `gorm:"column:actual_end_date"`
	IsNotMain          bool       `gorm:"column:is_not_main;not null;default:false"`
	Status             Status     `gorm:"column:status;type:varchar(20);not null;default:'todo';index"`
	DeleteReason       *string    `gorm:"column:delete_reason;type:text"`
	DisplayOrder       int        `gorm:"column:display_order;not null;default:0"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

func (Task) TableName() string {
	return "tasks"
}

type EventType string

const (
	EventCreated   EventType = "created"
	EventUpdated   EventType = "updated"
	EventStarted   EventType = "started"
	EventPaused    EventType = "paused"
	EventEnded     EventType = "ended"
	EventDeleted   EventType = "deleted"
	EventRestored  EventType = "restored"
	EventReordered EventType = "reordered"
)

func eventFor(a Action) EventType {
	switch a {
	case ActionStart:
		return EventStarted
	case ActionPause:
		return EventPaused
	case ActionEnd:
		return EventEnded
	case ActionDelete:
		return EventDeleted
	case ActionRestore:
		return EventRestored
	default:
		return ""
	}
}

// HistoryEntry is an append-only record of one mutation of a task.
type HistoryEntry struct {
	ID        string         `gorm:"column:id;primaryKey;type:varchar(32)"`
	TaskID    int64          `gorm:"column:task_id;index;not null"`
	EventType EventType      `gorm:"column:event_type;type:varchar(20);not null"`
	Details   datatypes.JSON `gorm:"column:details"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;autoCreateTime:false"`
}

func (HistoryEntry) TableName() string {
	return "task_history"
}
