// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"fmt"
	"regexp"
	"strings"
)

// AnyRegion is the pool key sentinel of tickets without a region preference.
const AnyRegion Region = "any"

var regionPattern = regexp.MustCompile(`^[a-z0-9-]{1,32}$`)

// Region is a normalized region identifier. The empty region means no preference.
type Region string

// ParseRegion normalizes a free-text region. Empty input and "any" both yield the empty region.
func ParseRegion(raw string) (Region, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" || normalized == string(AnyRegion) {
		return "", nil
	}
	if !regionPattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: region %q must match %s", ErrInvalidRequest, raw, regionPattern)
	}
	return Region(normalized), nil
}

// IsAny reports whether the region matches every directory region.
func (r Region) IsAny() bool {
	return r == "" || r == AnyRegion
}

// OrAny returns the region, or "any" when there is no preference.
func (r Region) OrAny() string {
	if r.IsAny() {
		return string(AnyRegion)
	}
	return string(r)
}

func (r Region) String() string {
	return string(r)
}

// PoolKey groups tickets sharing a game mode and region preference, formatted "<gameMode>:<region or any>".
type PoolKey string

func NewPoolKey(gameMode string, region Region) PoolKey {
	return PoolKey(gameMode + ":" + region.OrAny())
}

// GameMode returns the game mode part of the key.
func (k PoolKey) GameMode() string {
	idx := strings.LastIndex(string(k), ":")
	if idx < 0 {
		return string(k)
	}
	return string(k)[:idx]
}

// Region returns the region part of the key, empty for "any".
func (k PoolKey) Region() Region {
	idx := strings.LastIndex(string(k), ":")
	if idx < 0 {
		return ""
	}
	region := Region(string(k)[idx+1:])
	if region.IsAny() {
		return ""
	}
	return region
}

func (k PoolKey) String() string {
	return string(k)
}
