package rediskey

import (
	"fmt"
	"strings"
)

const (
	TaskPrefix           = "tasks"
	TaskListPrefix       = "tasks:list"
	TaskListGenerationID = "tasks:list:gen"
)

func NamespaceKey(namespace string, parts ...string) string {
	if len(parts) == 0 {
		return namespace
	}
	return fmt.Sprintf("%s:%s", namespace, strings.Join(parts, ":"))
}

// BuildTaskListGenerationKey returns "tasks:list:gen"
func BuildTaskListGenerationKey() string {
	return TaskListGenerationID
}

// BuildTaskListKey returns "tasks:list:{generation}:{filter}:{sort}"
func BuildTaskListKey(generation int64, filter, sort string) string {
	return NamespaceKey(TaskListPrefix, fmt.Sprintf("%d", generation), filter, sort)
}
