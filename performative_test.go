package fjage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPerformativeString(t *testing.T) {
	assert.Equal(t, "REQUEST", REQUEST.String())
	assert.Equal(t, "CANCEL", CANCEL.String())
	assert.Equal(t, "NONE", Performative(99).String())
}

func TestParsePerformative(t *testing.T) {
	p, ok := parsePerformative("AGREE")
	assert.True(t, ok)
	assert.Equal(t, AGREE, p)

	_, ok = parsePerformative("NOT_A_PERF")
	assert.False(t, ok)
}
