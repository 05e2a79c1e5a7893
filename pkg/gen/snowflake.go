package gen

import (
	"fmt"

	"tasktracker/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("snowflake", fx.Provide(NewSnowflakeNode))

// NewSnowflakeNode builds the ID generator for SNOWFLAKE.NODE (0..1023).
func NewSnowflakeNode(cfg *config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.Snowflake.Node)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node %d: %w", cfg.Snowflake.Node, err)
	}
	return node, nil
}
