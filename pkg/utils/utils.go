// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package utils

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	ulidMutex   sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// GenerateUUID generates uuid without hyphens.
func GenerateUUID() string {
	id, _ := uuid.NewRandom()
	return strings.ReplaceAll(id.String(), "-", "")
}

// GenerateULID generates a lexically sortable id, monotonic within the same millisecond.
func GenerateULID(t time.Time) string {
	ulidMutex.Lock()
	defer ulidMutex.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), ulidEntropy).String()
}

// Contains return true if val exist in list, else return false.
func Contains[T comparable](list []T, val T) bool {
	for _, v := range list {
		if v == val {
			return true
		}
	}
	return false
}
