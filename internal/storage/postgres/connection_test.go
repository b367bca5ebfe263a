package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sitecraft-ai/sitecraft-backend/config"
)

func TestNewConnection_RequiresDSN(t *testing.T) {
	db, err := NewConnection(&config.DatabaseConfig{})
	assert.Nil(t, db)
	assert.EqualError(t, err, "DB_DSN is not set")
}
