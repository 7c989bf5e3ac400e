package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOKWhenChecksPass(t *testing.T) {
	svc := NewService().
		AddCheck("database", func(context.Context) error { return nil }).
		SetProvider("craft", true).
		SetProvider("financial", false).
		SetQueueStats(func() map[string]any { return map[string]any{"queued": 0} })

	r := svc.Status(context.Background())
	assert.Equal(t, StatusOK, r.Status)
	assert.Equal(t, StatusOK, r.Checks["database"])
	assert.True(t, r.Providers["craft"])
	assert.False(t, r.Providers["financial"])
	assert.Equal(t, 0, r.Queue["queued"])
}

func TestStatusDegradedOnFailingCheck(t *testing.T) {
	svc := NewService().
		AddCheck("database", func(context.Context) error { return nil }).
		AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	r := svc.Status(context.Background())
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Equal(t, "connection refused", r.Checks["redis"])
	assert.Equal(t, StatusOK, r.Checks["database"])
}

func TestStatusWithNoChecks(t *testing.T) {
	r := NewService().Status(context.Background())
	assert.Equal(t, StatusOK, r.Status)
	assert.Empty(t, r.Checks)
	assert.Nil(t, r.Providers)
}
