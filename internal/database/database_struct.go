package database

import (
	"gorm.io/gorm"

	"github.com/tripwell/backoffice/internal/chat"
)

// Database is the gorm-backed chat store.
type Database struct {
	db *gorm.DB
}

var _ chat.Store = (*Database)(nil)

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}
