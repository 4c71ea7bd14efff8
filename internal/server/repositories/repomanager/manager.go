// Package repomanager vends repository implementations bound to a DBTX and
// owns schema migration for the two tables the auth core needs.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/ShayanSiddiqui862/todo-auth-service/internal/dbx"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/repositories/refreshtokens"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to either the pooled *sql.DB
// or a transaction, so services can run multi-statement operations atomically.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
