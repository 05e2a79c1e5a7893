package task

import (
	"net/http"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"tasktracker/pkg/config"
	"tasktracker/services/testutil"
)

func TestModuleWiring(t *testing.T) {
	db := testutil.NewTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	gin.SetMode(gin.TestMode)

	var engine *gin.Engine
	app := fxtest.New(t,
		fx.Supply(&config.Config{}, db, node),
		fx.Provide(func() *gin.Engine { return gin.New() }),
		Module,
		Gateway,
		fx.Populate(&engine),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.True(t, db.Migrator().HasTable(&Task{}))
	require.True(t, db.Migrator().HasTable(&HistoryEntry{}))

	w := do(t, engine, http.MethodPost, "/add_task", `{"name":"wired"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Exec("SELECT id, display_order, delete_reason FROM tasks").Error)
	require.NoError(t, db.Exec("SELECT id, task_id, event_type, details FROM task_history").Error)
}
