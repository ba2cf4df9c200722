package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/packlist-backend/pkg/db"
)

// Base is embedded by domain repositories. It binds the request context and
// lets saga steps rebind the repository to their transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. A nil ctx yields the raw connection.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx rebinds the base to an open transaction so saga steps share it.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// Locked is DB with SELECT ... FOR UPDATE on Postgres. SQLite serialises
// writers already and has no row locks, so the clause is skipped there.
func (b Base) Locked(ctx context.Context) *gorm.DB {
	db := b.DB(ctx)
	if db.Dialector != nil && db.Dialector.Name() == dbpkg.DriverPostgres {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// Owned scopes a query to the row of table with the given id and user_id.
func Owned(table string, id, ownerID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(table+".id = ? AND "+table+".user_id = ?", id, ownerID)
	}
}
