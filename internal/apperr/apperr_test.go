package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntegrationWrapsOnce(t *testing.T) {
	cause := errors.New("database is locked")

	err := Integration("loading events", cause)
	var inf *IntegrationFailure
	assert.True(t, errors.As(err, &inf))
	assert.Equal(t, "loading events", inf.Op)
	assert.ErrorIs(t, err, cause)

	again := Integration("outer", fmt.Errorf("ctx: %w", err))
	assert.True(t, errors.As(again, &inf))
	assert.Equal(t, "loading events", inf.Op)
}

func TestIntegrationKeepsNotFound(t *testing.T) {
	err := Integration("get", fmt.Errorf("event x: %w", ErrNotFound))
	assert.ErrorIs(t, err, ErrNotFound)

	var inf *IntegrationFailure
	assert.False(t, errors.As(err, &inf))
}

func TestIntegrationNil(t *testing.T) {
	assert.NoError(t, Integration("noop", nil))
}

func TestGuardViolationMessage(t *testing.T) {
	v := NewGuardViolation(ReasonInvalidState, "release is %s", "approved")
	assert.Equal(t, "invalid-state: release is approved", v.Error())
}
