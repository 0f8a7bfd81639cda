package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	got := Fingerprint("I love this")
	assert.Equal(t, got, Fingerprint("I love this"))
	assert.NotEqual(t, got, Fingerprint("I hate this"))
	assert.Regexp(t, `^[0-9a-f]{16}$`, got)
}
