package server

import (
	"testing"

	"island-tracker/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestValidator_MapCode(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Struct(islandQuery{Code: "0000-0000-0000"}))
	assert.ErrorIs(t, v.Struct(islandQuery{}), domain.ErrMapCodeRequired)
	assert.ErrorIs(t, v.Struct(islandQuery{Code: "0000-0000-000"}), domain.ErrInvalidMapCode)
	assert.ErrorIs(t, v.Struct(islandQuery{Code: "0000_0000_0000"}), domain.ErrInvalidInput)
}

func TestMustRegister_PanicsOnRejectedTag(t *testing.T) {
	assert.NotPanics(t, func() { NewValidator() })
	assert.Panics(t, func() { mustRegister(validator.New(), "", validateMapCode) })
}

func TestQueryBool(t *testing.T) {
	for _, v := range []string{"true"} {
		assert.True(t, queryBool(v), v)
	}
	for _, v := range []string{"", "false", "0", "1", "t", "TRUE", "True", "yes", "on"} {
		assert.False(t, queryBool(v), v)
	}
}
