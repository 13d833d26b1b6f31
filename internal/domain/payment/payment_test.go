package payment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBytes(t *testing.T) {
	payload := `{
		"id": "PAY-123",
		"status": "COMPLETED",
		"update_time": "2025-06-15T12:00:00Z",
		"payer": {"email_address": "buyer@example.com", "name": {"given_name": "Ana"}},
		"links": [{"href": "https://gateway.example/pay/123"}]
	}`

	got, err := DecodeBytes([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "PAY-123", got.ID)
	assert.Equal(t, "COMPLETED", got.Status)
	assert.Equal(t, "2025-06-15T12:00:00Z", got.UpdateTime)
	assert.Equal(t, "buyer@example.com", got.EmailAddress)
	assert.Empty(t, got.PayerID)
	assert.JSONEq(t, payload, string(got.Raw))
}

func TestResult_KeepsGatewayFields(t *testing.T) {
	payload := `{
		"id": "PAY-9",
		"status": "COMPLETED",
		"update_time": "2025-06-15T12:00:00Z",
		"payer": {"email_address": "buyer@example.com", "name": {"given_name": "Ana", "surname": "Ruiz"}},
		"purchase_units": [{"reference_id": "default", "amount": {"currency_code": "COP", "value": "129000"}}]
	}`

	got, err := DecodeBytes([]byte(payload))
	require.NoError(t, err)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, payload, string(data))

	// Stored and loaded again, as the order repositories do.
	again, err := DecodeBytes(data)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestDecode_RawIsCopied(t *testing.T) {
	buf := []byte(`{"id":"PAY-1","status":"COMPLETED"}`)
	got, err := DecodeBytes(buf)
	require.NoError(t, err)

	buf[8] = 'X'
	assert.Equal(t, "PAY-1", got.ID)
	assert.JSONEq(t, `{"id":"PAY-1","status":"COMPLETED"}`, string(got.Raw))
}

func TestDecodeBytes_NullFields(t *testing.T) {
	got, err := DecodeBytes([]byte(`{"id":"X","status":null,"payer":{"email_address":null}}`))
	require.NoError(t, err)
	assert.Equal(t, "X", got.ID)
	assert.Empty(t, got.Status)
	assert.Empty(t, got.EmailAddress)
}

func TestDecodeBytes_Invalid(t *testing.T) {
	for _, payload := range []string{
		`{"status":"COMPLETED"}`,
		`{"id": 42}`,
		`[1,2,3]`,
		`{"id":"X"`,
	} {
		_, err := DecodeBytes([]byte(payload))
		assert.Error(t, err, payload)
	}
}

func TestResult_JSONRoundTrip(t *testing.T) {
	in := Result{ID: "A", Status: "COMPLETED", UpdateTime: "t", EmailAddress: "e@x", PayerID: "P1"}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Result
	require.NoError(t, json.Unmarshal(data, &out))
	assert.JSONEq(t, string(data), string(out.Raw))
	out.Raw = nil
	assert.Equal(t, in, out)
}
