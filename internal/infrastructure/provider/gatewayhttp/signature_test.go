package gatewayhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyHMACSHA256(t *testing.T) {
	payload := []byte(`{"id":"1"}`)
	sig := SignHMACSHA256("secret", payload)

	assert.True(t, VerifyHMACSHA256("secret", payload, sig))
	assert.True(t, VerifyHMACSHA256("secret", payload, "sha256="+sig))
	assert.False(t, VerifyHMACSHA256("secret", payload, ""))
	assert.False(t, VerifyHMACSHA256("other", payload, sig))
	assert.False(t, VerifyHMACSHA256("secret", []byte(`{"id":"2"}`), sig))
	assert.True(t, VerifyHMACSHA256("", payload, ""))
}
