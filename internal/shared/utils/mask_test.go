package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j***@shop.example", MaskEmail("jane@shop.example"))
	assert.Equal(t, "j***@shop.example", MaskEmail("j@shop.example"))
	assert.Equal(t, "***", MaskEmail("not-an-email"))
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", MaskToken(""))
	assert.Equal(t, "****", MaskToken("card_1"))
	assert.Equal(t, "****9f3a", MaskToken("tok_live_7c2e9f3a"))
}
