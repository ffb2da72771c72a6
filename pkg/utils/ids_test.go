package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateWorkerID_EncodesGroup(t *testing.T) {
	id := GenerateWorkerID(2)

	assert.True(t, strings.HasPrefix(id, "group-2-"))
	assert.Len(t, id, len("group-2-")+8)
	assert.Equal(t, 2, GroupFromWorkerID(id))
}

func TestGenerateWorkerID_IsUnique(t *testing.T) {
	assert.NotEqual(t, GenerateWorkerID(1), GenerateWorkerID(1))
}

func TestGroupFromWorkerID_RejectsForeignIDs(t *testing.T) {
	for _, id := range []string{"", "mediator-a3f8e2b1", "group-x-a3f8e2b1", "group-1"} {
		assert.Equal(t, 0, GroupFromWorkerID(id), id)
	}
}

func TestGenerateMediatorID_Format(t *testing.T) {
	id := GenerateMediatorID()

	assert.True(t, strings.HasPrefix(id, "mediator-"))
	assert.Len(t, id, len("mediator-")+8)
}

func TestGenerateFailureID_IsFullUUID(t *testing.T) {
	assert.Len(t, GenerateFailureID(), 36)
}
