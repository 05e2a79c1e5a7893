package gen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tasktracker/pkg/config"
)

func TestNewSnowflakeNode(t *testing.T) {
	cfg := &config.Config{}
	cfg.Snowflake.Node = 7

	node, err := NewSnowflakeNode(cfg)
	require.NoError(t, err)

	a, b := node.Generate(), node.Generate()
	require.NotEqual(t, a, b)
	require.Equal(t, int64(7), a.Node())

	cfg.Snowflake.Node = 5000
	_, err = NewSnowflakeNode(cfg)
	require.Error(t, err)
}
