package app

import (
	"database/sql"
	"fmt"

	"permitflow/internal/config"
	"permitflow/internal/db"
	"permitflow/internal/engine"
	"permitflow/internal/migrate"
)

// Context is the opened application stack for a workspace: database,
// migrated schema, resolved config and the authoring engine over them.
type Context struct {
	Workspace string
	DB        *sql.DB
	Config    *config.Config
	Engine    *engine.Engine
}

// Open boots the stack for a workspace. A missing permitflow.yml falls back
// to the built-in default catalogue so the service runs unconfigured.
func Open(workspace string) (*Context, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("permitflow")
	}
	if err := cfg.Validate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("config: %w", err)
	}
	return &Context{
		Workspace: workspace,
		DB:        conn,
		Config:    cfg,
		Engine:    engine.New(conn, cfg),
	}, nil
}

// Close releases the database handle.
func (c *Context) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
