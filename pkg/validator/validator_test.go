package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name string `json:"parameter" validate:"required"`
	Flag string `json:"flag" validate:"omitempty,oneof=Normal High"`
}

type draft struct {
	TestName string `json:"testName" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Age      int    `json:"age" validate:"min=0,max=150"`
	Items    []item `json:"parameters" validate:"dive"`
}

func TestValidate_OK(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(draft{TestName: "CBC", Items: []item{{Name: "Hb"}}}))
}

func TestValidate_FieldErrors(t *testing.T) {
	v := New()
	err := v.Validate(draft{Email: "nope", Age: 200, Items: []item{{Flag: "Weird"}}})
	require.Error(t, err)

	var verrs Errors
	require.True(t, errors.As(err, &verrs))

	msgs := verrs.Messages()
	assert.Contains(t, msgs, "testName is required")
	assert.Contains(t, msgs, "email must be a valid email")
	assert.Contains(t, msgs, "age must be at most 150")
	assert.Contains(t, msgs, "parameters[0].parameter is required")
	assert.Contains(t, msgs, "parameters[0].flag must be one of: Normal, High")
}

func TestValidate_NotBlank(t *testing.T) {
	type named struct {
		Name     string  `json:"name" validate:"required,notblank"`
		Nickname *string `json:"nickname" validate:"omitempty,notblank"`
	}
	v := New()

	assert.NoError(t, v.Validate(named{Name: " Asha "}))

	blank := " \t"
	err := v.Validate(named{Name: "   ", Nickname: &blank})
	var verrs Errors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []string{"name is required", "nickname is required"}, verrs.Messages())
}
