// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"errors"
)

var (
	ErrTicketNotFound       = errors.New("ticket not found")
	ErrAlreadyResolved      = errors.New("ticket already resolved")
	ErrDirectoryUnavailable = errors.New("server directory unavailable")
	ErrConnectionGone       = errors.New("connection gone")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrServerNotFound       = errors.New("server not found")
	ErrInvalidServerToken   = errors.New("invalid server token")
	ErrTicketNotOwned       = errors.New("ticket belongs to another player")
)

var errorCodeMap = map[error]int{
	ErrTicketNotFound:       510201,
	ErrAlreadyResolved:      510202,
	ErrDirectoryUnavailable: 510203,
	ErrConnectionGone:       510204,
	ErrInvalidRequest:       510205,
	ErrNotAuthenticated:     510206,
	ErrServerNotFound:       510207,
	ErrInvalidServerToken:   510208,
	ErrTicketNotOwned:       510209,
}

// ErrorCode returns a code for the error, unwrapping it until a registered error is found.
// It returns 20000 (internal error) if no registered error is in the chain.
func ErrorCode(err error) int {
	for registered, code := range errorCodeMap {
		if errors.Is(err, registered) {
			return code
		}
	}
	return 20000
}
