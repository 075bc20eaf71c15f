package fjage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, AID("#t"), Topic("t"))
}

func TestIsTopic(t *testing.T) {
	assert.True(t, IsTopic(Topic("t")))
	assert.False(t, IsTopic(AID("agent1")))
}

func TestDefaultTopic(t *testing.T) {
	assert.Equal(t, AID("#a__ntf"), defaultTopic(AID("a")))
}
