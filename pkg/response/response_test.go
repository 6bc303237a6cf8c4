package response

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopes(t *testing.T) {
	ok := OKT(map[string]int{"balance": 3})
	require.Equal(t, APIResponseCodeOK, ok.Code)
	require.Equal(t, "ok", ok.Message)

	nf := ErrorT[any](APIResponseCodeNotFound, nil)
	require.Equal(t, "not found", nf.Message)

	msg := ErrorMsgT[any](APIResponseCodeBadRequest, "card number is required", nil)
	require.Equal(t, "card number is required", msg.Message)
	require.Equal(t, "conflict", ErrorMsgT[any](APIResponseCodeConflict, "", nil).Message)
}
