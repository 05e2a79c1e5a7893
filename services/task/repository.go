package task

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListParams describes filters applied when listing tasks from the repository.
type ListParams struct {
	Statuses []Status
	SortBy   SortBy
	Filter   Filter
}

// Repository describes database operations available for tasks.
type Repository interface {
	WithTrx(tx *gorm.DB) Repository
	Create(ctx context.Context, task *Task) error
	GetByID(ctx context.Context, id int64) (*Task, error)
	GetForUpdate(ctx context.Context, id int64) (*Task, error)
	List(ctx context.Context, params ListParams) ([]Task, error)
	CountActive(ctx context.Context) (int64, error)
	Save(ctx context.Context, task *Task) error
	SetDisplayOrder(ctx context.Context, id int64, order int) error
	AppendHistory(ctx context.Context, entries ...*HistoryEntry) error
	ListHistory(ctx context.Context, taskID int64) ([]HistoryEntry, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm backed Repository implementation.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTrx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, task *Task) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *gormRepository) GetByID(ctx context.Context, id int64) (*Task, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var task Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// GetForUpdate locks the row until the surrounding transaction ends.
// sqlite has no row locks and relies on its single writer instead.
func (r *gormRepository) GetForUpdate(ctx context.Context, id int64) (*Task, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var task Task
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *gormRepository) List(ctx context.Context, params ListParams) ([]Task, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	query := r.db.WithContext(ctx).Model(&Task{})
	if len(params.Statuses) > 0 {
		query = query.Where("status IN ?", params.Statuses)
	}

	switch params.SortBy {
	case SortLimitDate:
		// "IS NULL" sorts false before true on sqlite, postgres and mysql alike.
		query = query.Order("limit_date IS NULL").Order("limit_date ASC").Order("display_order ASC")
	case SortDisplayOrder:
		query = query.Order("display_order ASC").Order("limit_date IS NULL").Order("limit_date ASC")
	default:
		switch params.Filter {
		case FilterCompleted:
			query = query.Order("actual_end_date IS NULL").Order("actual_end_date DESC")
		case FilterDeleted:
			query = query.Order("updated_at DESC")
		default:
			query = query.Order("display_order ASC").Order("limit_date IS NULL").Order("limit_date ASC")
		}
	}
	query = query.Order("id ASC")

	var tasks []Task
	if err := query.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *gormRepository) CountActive(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, gorm.ErrInvalidDB
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&Task{}).
		Where("status IN ?", FilterActive.Statuses()).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) Save(ctx context.Context, task *Task) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	// Select("*") writes zero values too, so cleared dates become NULL.
	return r.db.WithContext(ctx).Model(task).Select("*").Updates(task).Error
}

func (r *gormRepository) SetDisplayOrder(ctx context.Context, id int64, order int) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	return r.db.WithContext(ctx).Model(&Task{}).
		Where("id = ?", id).
		UpdateColumn("display_order", order).Error
}

func (r *gormRepository) AppendHistory(ctx context.Context, entries ...*HistoryEntry) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(entries).Error
}

func (r *gormRepository) ListHistory(ctx context.Context, taskID int64) ([]HistoryEntry, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var entries []HistoryEntry
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").Order("id ASC").
		Find(&entries).Error
	return entries, err
}
