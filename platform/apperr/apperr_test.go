package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("status is required"), http.StatusBadRequest},
		{NotFound("no eligible leads"), http.StatusNotFound},
		{Forbidden("not your batch"), http.StatusForbidden},
		{Expired("revert window elapsed"), http.StatusBadRequest},
		{Conflict("already reverted"), http.StatusConflict},
		{Unavailable("queue down", errors.New("dial tcp")), http.StatusServiceUnavailable},
		{Internal("boom"), http.StatusInternalServerError},
		{New(KindUnknown, "?"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.HTTPStatus(), tc.err.Message)
	}
}

func TestGetKindFollowsWrappedChain(t *testing.T) {
	base := Forbidden("batch not owned by caller")
	wrapped := fmt.Errorf("revert: %w", base)

	assert.Equal(t, KindForbidden, GetKind(wrapped))
	assert.True(t, Is(wrapped, KindForbidden))
	assert.False(t, Is(errors.New("plain"), KindForbidden))
}

func TestErrorStringIncludesOpAndCause(t *testing.T) {
	err := Unavailable("job queue unavailable", errors.New("connection refused")).WithOp("assignment.bulk_assign")

	assert.Equal(t, "assignment.bulk_assign: job queue unavailable: connection refused", err.Error())
	assert.ErrorContains(t, err, "connection refused")
}
