package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tasktracker/pkg/errutil"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Register mounts the Task API routes.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/get_tasks", h.listActive)
	r.GET("/get_completed_tasks", h.listCompleted)
	r.GET("/get_deleted_tasks", h.listDeleted)
	r.GET("/task/:id", h.get)
	r.GET("/task/:id/history", h.history)
	r.POST("/add_task", h.add)
	r.POST("/update_task/:id", h.update)
	r.POST("/delete_task/:id", h.delete)
	r.POST("/start_task/:id", h.lifecycle(h.store.Start))
	r.POST("/pause_task/:id", h.lifecycle(h.store.Pause))
	r.POST("/end_task/:id", h.lifecycle(h.store.End))
	r.POST("/restore_task/:id", h.lifecycle(h.store.Restore))
	r.POST("/update_task_order", h.reorder)
}

type taskRequest struct {
	Name               string    `json:"name"`
	Detail             *string   `json:"detail"`
	LimitDate          *string   `json:"limit_date"`
	ScheduledStartDate *string   `json:"scheduled_start_date"`
	ScheduledEndDate   *string   `json:"scheduled_end_date"`
	IsNotMain          *flexBool `json:"is_not_main"`
}

func (r taskRequest) input() (Input, error) {
	in := Input{Name: r.Name, Detail: r.Detail}
	if r.IsNotMain != nil {
		v := bool(*r.IsNotMain)
		in.IsNotMain = &v
	}

	var err error
	if in.LimitDate, err = ParseDate("limit_date", r.LimitDate); err != nil {
		return Input{}, err
	}
	if in.ScheduledStartDate, err = ParseDate("scheduled_start_date", r.ScheduledStartDate); err != nil {
		return Input{}, err
	}
	if in.ScheduledEndDate, err = ParseDate("scheduled_end_date", r.ScheduledEndDate); err != nil {
		return Input{}, err
	}
	return in, nil
}

// flexBool accepts true/false as well as the strings and numbers HTML forms send.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "on", "1", "yes":
			*b = true
			return nil
		case "false", "off", "0", "no", "":
			*b = false
			return nil
		}
		return fmt.Errorf("is_not_main: %q is not a boolean", s)
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*b = n != 0
		return nil
	}

	return fmt.Errorf("is_not_main: %s is not a boolean", data)
}

type deleteRequest struct {
	DeleteReason *string `json:"delete_reason"`
}

type reorderRequest struct {
	OrderedIDs idList `json:"ordered_ids"`
}

// idList decodes task ids given as JSON strings or numbers.
type idList []int64

func (l *idList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.New("ordered_ids must be an array of task ids")
	}

	ids := make(idList, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return fmt.Errorf("ordered_ids: %q is not a task id", s)
			}
			ids = append(ids, id)
			continue
		}

		var id int64
		if err := json.Unmarshal(item, &id); err != nil {
			return fmt.Errorf("ordered_ids: %s is not a task id", item)
		}
		ids = append(ids, id)
	}

	*l = ids
	return nil
}

type TaskResponse struct {
	ID                 int64      `json:"id"`
	Name               string     `json:"name"`
	Detail             *string    `json:"detail"`
	LimitDate          *time.Time `json:"limit_date"`
	ScheduledStartDate *time.Time `json:"scheduled_start_date"`
	ScheduledEndDate   *time.Time `json:"scheduled_end_date"`
	ActualStartDate    *time.Time `json:"actual_start_date"`
	ActualEndDate      *time.Time `json:"actual_end_date"`
	IsNotMain          bool       `json:"is_not_main"`
	Status             Status     `json:"status"`
	DisplayOrder       int        `json:"display_order"`
	DeleteReason       *string    `json:"delete_reason"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func ToResponse(t *Task) TaskResponse {
	return TaskResponse{
		ID:                 t.ID,
		Name:               t.Name,
		Detail:             t.Detail,
		LimitDate:          t.LimitDate,
		ScheduledStartDate: t.ScheduledStartDate,
		ScheduledEndDate:   t.ScheduledEndDate,
		ActualStartDate:    t.ActualStartDate,
		ActualEndDate:      t.ActualEndDate,
		IsNotMain:          t.IsNotMain,
		Status:             t.Status,
		DisplayOrder:       t.DisplayOrder,
		DeleteReason:       t.DeleteReason,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func toResponses(tasks []Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, ToResponse(&tasks[i]))
	}
	return out
}

type LifecycleResponse struct {
	ID              int64      `json:"id"`
	Status          Status     `json:"status"`
	ActualStartDate *time.Time `json:"actual_start_date"`
	ActualEndDate   *time.Time `json:"actual_end_date"`
}

type HistoryResponse struct {
	ID        string          `json:"id"`
	TaskID    int64           `json:"task_id"`
	EventType EventType       `json:"event_type"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"created_at"`
}

func (h *Handler) listActive(c *gin.Context) {
	h.list(c, FilterActive)
}

func (h *Handler) listCompleted(c *gin.Context) {
	h.list(c, FilterCompleted)
}

func (h *Handler) listDeleted(c *gin.Context) {
	h.list(c, FilterDeleted)
}

func (h *Handler) list(c *gin.Context, filter Filter) {
	tasks, err := h.store.List(c.Request.Context(), filter, SortBy(c.Query("sort_by")))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toResponses(tasks))
}

func (h *Handler) get(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ToResponse(task))
}

func (h *Handler) history(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	entries, err := h.store.History(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	out := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		details := json.RawMessage(e.Details)
		if len(details) == 0 {
			details = json.RawMessage("{}")
		}
		out = append(out, HistoryResponse{
			ID:        e.ID,
			TaskID:    e.TaskID,
			EventType: e.EventType,
			Details:   details,
			CreatedAt: e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) add(c *gin.Context) {
	var req taskRequest
	if !bindJSON(c, &req, false) {
		return
	}

	in, err := req.input()
	if err != nil {
		_ = c.Error(err)
		return
	}

	task, err := h.store.Create(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, ToResponse(task))
}

func (h *Handler) update(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req taskRequest
	var in Input
	err := decodeBody(c, &req, false)
	if err == nil {
		in, err = req.input()
	}
	if err != nil {
		// An unknown task is reported before anything wrong with the body.
		if _, getErr := h.store.Get(c.Request.Context(), id); getErr != nil {
			err = getErr
		}
		_ = c.Error(err)
		return
	}

	task, err := h.store.Update(c.Request.Context(), id, in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ToResponse(task))
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req deleteRequest
	if !bindJSON(c, &req, true) {
		return
	}

	reason := ""
	if req.DeleteReason != nil {
		reason = *req.DeleteReason
	}

	task, err := h.store.Delete(c.Request.Context(), id, reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ToResponse(task))
}

func (h *Handler) lifecycle(action func(ctx context.Context, id int64) (*Task, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := taskID(c)
		if !ok {
			return
		}

		task, err := action(c.Request.Context(), id)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, LifecycleResponse{
			ID:              task.ID,
			Status:          task.Status,
			ActualStartDate: task.ActualStartDate,
			ActualEndDate:   task.ActualEndDate,
		})
	}
}

func (h *Handler) reorder(c *gin.Context) {
	var req reorderRequest
	if !bindJSON(c, &req, false) {
		return
	}
	if req.OrderedIDs == nil {
		_ = c.Error(errutil.ValidationFailed("ordered_ids is required", nil))
		return
	}

	tasks, err := h.store.Reorder(c.Request.Context(), []int64(req.OrderedIDs))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toResponses(tasks))
}

// taskID parses the :id path parameter. Anything that is not a positive
// integer cannot name a task, so it is reported as not found.
func taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(errutil.NotFound("task not found", nil))
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any, allowEmpty bool) bool {
	if err := decodeBody(c, dst, allowEmpty); err != nil {
		_ = c.Error(err)
		return false
	}
	return true
}

func decodeBody(c *gin.Context, dst any, allowEmpty bool) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		if allowEmpty {
			return nil
		}
		return errutil.BadRequest("request body must be a JSON object", err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return errutil.BadRequest("malformed JSON body", err)
	case errors.As(err, &typeErr) && typeErr.Field == "":
		return errutil.BadRequest("request body must be a JSON object", err)
	case errors.As(err, &typeErr):
		return errutil.BadRequest(fmt.Sprintf("%s has the wrong type", typeErr.Field), err)
	default:
		return errutil.BadRequest(err.Error(), err)
	}
}
