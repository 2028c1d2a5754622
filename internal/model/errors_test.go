package model

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsMatch(t *testing.T) {
	err := StorageError("purge member", sql.ErrConnDone)

	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.False(t, errors.Is(err, ErrConfiguration))
	assert.Equal(t, "purge member: storage error: sql: connection is already closed", err.Error())
}

func TestStorageErrorNil(t *testing.T) {
	assert.NoError(t, StorageError("noop", nil))
}

func TestRetentionRecordExpired(t *testing.T) {
	exp := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)
	r := RetentionRecord{ExpiresAt: exp}

	assert.False(t, r.Expired(exp.Add(-time.Second)))
	assert.True(t, r.Expired(exp))
	assert.True(t, r.Expired(exp.Add(time.Hour)))
}
