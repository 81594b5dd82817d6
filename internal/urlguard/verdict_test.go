package urlguard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerdict_Invariant(t *testing.T) {
	assert.Equal(t, Verdict{Valid: true}, Accept())
	assert.Equal(t, "", Accept().Message())
	assert.Equal(t, "valid", Accept().Label())

	v := Reject("")
	assert.False(t, v.Valid)
	assert.Equal(t, ReasonValidationError, v.Reason)
}

func TestReasons_AllHaveMessages(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range Reasons() {
		msg := r.Message()
		assert.NotEmpty(t, msg, r)
		assert.False(t, seen[msg], "duplicate message for %s", r)
		seen[msg] = true
	}
	assert.Len(t, Reasons(), 12)
	assert.Equal(t, ReasonValidationError.Message(), Reason("Unknown").Message())
}

func TestVerdict_JSON(t *testing.T) {
	data, err := json.Marshal(Reject(ReasonIPNotAllowed))
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":false,"reason":"IpNotAllowed","message":"URL points to a private or reserved IP address"}`, string(data))

	data, err = json.Marshal(Accept())
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":true}`, string(data))

	var v Verdict
	require.NoError(t, json.Unmarshal([]byte(`{"valid":false}`), &v))
	assert.Equal(t, Reject(ReasonValidationError), v)

	require.NoError(t, json.Unmarshal([]byte(`{"valid":true,"reason":"IpNotAllowed"}`), &v))
	assert.Equal(t, Accept(), v)
}
