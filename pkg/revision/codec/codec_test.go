package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Balance int    `json:"balance"`
	Token   string `json:"token"`
}

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestJSONEncodeAllFields(t *testing.T) {
	data, err := JSON{}.Encode(account{ID: "a-1", Email: "a@b.c", Balance: 10, Token: "x"}, nil, nil)
	require.NoError(t, err)

	out := decode(t, data)
	assert.Len(t, out, 4)
	assert.Equal(t, "a-1", out["id"])
}

func TestJSONEncodeFieldSelection(t *testing.T) {
	acct := account{ID: "a-1", Email: "a@b.c", Balance: 10, Token: "x"}

	data, err := JSON{}.Encode(acct, []string{"id", "balance"}, nil)
	require.NoError(t, err)
	out := decode(t, data)
	assert.Len(t, out, 2)
	assert.Equal(t, float64(10), out["balance"])

	data, err = JSON{}.Encode(acct, nil, []string{"token"})
	require.NoError(t, err)
	out = decode(t, data)
	assert.Len(t, out, 3)
	assert.NotContains(t, out, "token")

	// Exclusion applies after selection.
	data, err = JSON{}.Encode(acct, []string{"id", "token"}, []string{"token"})
	require.NoError(t, err)
	out = decode(t, data)
	assert.Equal(t, map[string]any{"id": "a-1"}, out)
}

func TestJSONEncodeUnknownFieldIgnored(t *testing.T) {
	data, err := JSON{}.Encode(account{ID: "a-1"}, []string{"id", "missing"}, nil)
	require.NoError(t, err)
	assert.Len(t, decode(t, data), 1)
}

func TestJSONEncodeRejectsNonObject(t *testing.T) {
	_, err := JSON{}.Encode([]int{1, 2}, nil, nil)
	require.Error(t, err)

	_, err = JSON{}.Encode(make(chan int), nil, nil)
	require.Error(t, err)
}

func TestJSONFormat(t *testing.T) {
	assert.Equal(t, "json", JSON{}.Format())
}
