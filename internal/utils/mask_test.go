package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "*****", MaskSecret("abcd"))
	assert.Equal(t, "0041*****", MaskSecret("0041a2b3c4d5e6f"))
}
