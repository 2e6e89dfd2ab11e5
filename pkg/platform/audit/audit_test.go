package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	params := map[string]any{
		"sku_pattern":     "SHIRT-%",
		"bearer_token":    "secret-value",
		"consumer_secret": "also-secret",
		"admin_key":       "key-material",
		"new_price":       79.99,
	}

	redacted := Redact(params)

	assert.Equal(t, "SHIRT-%", redacted["sku_pattern"])
	assert.Equal(t, 79.99, redacted["new_price"])
	assert.Equal(t, "[REDACTED]", redacted["bearer_token"])
	assert.Equal(t, "[REDACTED]", redacted["consumer_secret"])
	assert.Equal(t, "[REDACTED]", redacted["admin_key"])

	// Original untouched.
	assert.Equal(t, "secret-value", params["bearer_token"])
}

func TestRedactNil(t *testing.T) {
	assert.Nil(t, Redact(nil))
}
