// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUUID_HasNoHyphens(t *testing.T) {
	id := GenerateUUID()
	assert.Len(t, id, 32)
	assert.NotContains(t, id, "-")
	assert.NotEqual(t, id, GenerateUUID())
}

func TestGenerateULID_IsSortableWithinSameMillisecond(t *testing.T) {
	now := time.Now()
	first := GenerateULID(now)
	second := GenerateULID(now)
	assert.Len(t, first, 26)
	assert.Less(t, first, second)
}

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "b"))
	assert.False(t, Contains([]string{"a", "b"}, "c"))
	assert.False(t, Contains(nil, 1))
}
