package idempotency

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKey(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateKey(ScopePaymentIntent, map[string]interface{}{
		"payment_id": "pay_1",
		"previous":   "",
	})
	b := g.GenerateKey(ScopePaymentIntent, map[string]interface{}{
		"previous":   "",
		"payment_id": "pay_1",
	})
	assert.Equal(t, a, b, "parameter order must not matter")
	assert.True(t, strings.HasPrefix(a, "payment_intent-"))

	c := g.GenerateKey(ScopePaymentIntent, map[string]interface{}{
		"payment_id": "pay_1",
		"previous":   "pi_old",
	})
	assert.NotEqual(t, a, c)

	d := g.GenerateKey(ScopeNotification, map[string]interface{}{
		"payment_id": "pay_1",
		"previous":   "",
	})
	assert.NotEqual(t, a, d, "scope is part of the key")
}

func TestValidateKey(t *testing.T) {
	g := NewGenerator()
	params := map[string]interface{}{"payment_id": "pay_1"}
	key := g.GenerateKey(ScopePaymentIntent, params)

	assert.True(t, g.ValidateKey(ScopePaymentIntent, params, key))
	assert.False(t, g.ValidateKey(ScopePaymentIntent, map[string]interface{}{"payment_id": "pay_2"}, key))
}
