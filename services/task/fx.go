package task

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("task.service",
	fx.Provide(
		NewListCache,
		NewService,
		func(s *Service) Store { return s },
	),
	fx.Invoke(Migrate),
)

var Gateway = fx.Module("task.gateway",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

// Migrate creates or updates the tasks and task_history tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Task{}, &HistoryEntry{}); err != nil {
		return fmt.Errorf("migrate task tables: %w", err)
	}
	return nil
}

func registerRoutes(engine *gin.Engine, h *Handler) {
	h.Register(engine)
}
