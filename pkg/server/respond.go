// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-server-matchmaker/pkg/models"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Warn("unable to write response body")
	}
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, httpStatus(err), ErrorResponse{
		ErrorCode:    models.ErrorCode(err),
		ErrorMessage: err.Error(),
	})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrInvalidServerToken), errors.Is(err, models.ErrTicketNotOwned):
		return http.StatusForbidden
	case errors.Is(err, models.ErrServerNotFound), errors.Is(err, models.ErrTicketNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDirectoryUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %s", models.ErrInvalidRequest, err.Error())
}

const maxBodyBytes = 1 << 20
