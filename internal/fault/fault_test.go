package fault

import (
	"errors"
	"net/http"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestKindOf_ThroughWrapping(t *testing.T) {
	base := NewJoin("duplicate origin ids", []string{"5", "7"})
	wrapped := eris.Wrap(base, "pipeline: join")

	assert.Equal(t, Join, KindOf(wrapped))
	assert.True(t, Is(wrapped, Join))
	assert.False(t, Is(wrapped, Index))

	var fe *Error
	assert.True(t, errors.As(wrapped, &fe))
	assert.Equal(t, []string{"5", "7"}, fe.IDs)
	assert.Contains(t, wrapped.Error(), "JoinError")
	assert.Contains(t, wrapped.Error(), "[5, 7]")
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, Unknown, KindOf(errors.New("boom")))
	assert.Equal(t, Unknown, KindOf(nil))
	assert.False(t, Is(nil, Unknown))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("boom"), 1},
		{NewDataSource(errors.New("eof"), "grid: open"), 2},
		{NewIndex(nil, "matrix: empty collection"), 3},
		{NewJoin("dup", nil), 4},
		{Configurationf("unknown mode %q", "bike"), 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err))
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Configurationf("bad")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NewIndex(nil, "miss")))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(NewJoin("dup", nil)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestNewDataSource_KeepsCause(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewDataSource(cause, "grid: open shapefile")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "grid: open shapefile")
}
