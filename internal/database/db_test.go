package database

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDSN(t *testing.T) {
	dsn := Config{User: "cinema", Pass: "p@ss", Host: "db", Port: "3306", Name: "seats"}.DSN()

	mc, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "cinema", mc.User)
	assert.Equal(t, "p@ss", mc.Passwd)
	assert.Equal(t, "db:3306", mc.Addr)
	assert.Equal(t, "seats", mc.DBName)
	assert.True(t, mc.ParseTime)
	assert.Contains(t, dsn, "charset=utf8mb4")
}
