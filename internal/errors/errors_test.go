package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	errTest  Code = "test"
	errOther Code = "other"
)

func TestWrapKeepsCode(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(errTest, base, "doing thing")

	assert.True(t, Is(err, errTest))
	assert.False(t, Is(err, errOther))
	assert.True(t, Is(err, base))
	assert.Contains(t, err.Error(), "doing thing")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(errTest, nil, "noop"))
	assert.NoError(t, Wrapf(errTest, nil, "noop %d", 1))
}

func TestCodeOf(t *testing.T) {
	code, ok := CodeOf(Newf(errTest, "value %d", 3))
	assert.True(t, ok)
	assert.Equal(t, errTest, code)

	code, ok = CodeOf(fmt.Errorf("outer: %w", New(errOther, "inner")))
	assert.True(t, ok)
	assert.Equal(t, errOther, code)

	code, ok = CodeOf(errTest)
	assert.True(t, ok)
	assert.Equal(t, errTest, code)

	_, ok = CodeOf(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestAs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(errTest, "x"))
	e, ok := As[*Error](err)
	assert.True(t, ok)
	assert.Equal(t, errTest, (*e).Code)

	_, ok = As[*Error](stderrors.New("plain"))
	assert.False(t, ok)
}

func TestJoin(t *testing.T) {
	assert.NoError(t, Join(nil, nil))

	err := Join(nil, New(errTest, "a"), New(errOther, "b"))
	assert.True(t, Is(err, errTest))
	assert.True(t, Is(err, errOther))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "test: value 3", Newf(errTest, "value %d", 3).Error())
	assert.Equal(t, "test", (&Error{Code: errTest}).Error())
	assert.Equal(t, "<nil>", (*Error)(nil).Error())
}
