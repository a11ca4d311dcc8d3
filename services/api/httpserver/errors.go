// Copyright 2026 The Etaserve Authors <dev@etaserve.io>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/loopfz/gadgeto/tonic"

	"github.com/etaserve/etaserve/services/api/predictor"
	"github.com/etaserve/etaserve/services/api/registry/backend"
)

type httpError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message" description:"Human-readable error description"`
	Err        error  `json:"-"`
}

func (e httpError) Error() string {
	return e.Message
}

func (e httpError) Unwrap() error {
	return e.Err
}

func wrapError(statusCode int, err error) error {
	return httpError{
		StatusCode: statusCode,
		Message:    err.Error(),
		Err:        err,
	}
}

// wrapDomainError maps the prediction and registry errors to their status code
func wrapDomainError(err error) error {
	var unknownModeErr *predictor.UnknownModeError
	if errors.As(err, &unknownModeErr) {
		return wrapError(http.StatusBadRequest, err)
	}
	var modelNotLoadedErr *predictor.ModelNotLoadedError
	if errors.As(err, &modelNotLoadedErr) {
		return wrapError(http.StatusServiceUnavailable, err)
	}
	var unknownModelErr *backend.UnknownModelError
	if errors.As(err, &unknownModelErr) {
		return wrapError(http.StatusNotFound, err)
	}
	var unknownVersionErr *backend.UnknownModelVersionError
	if errors.As(err, &unknownVersionErr) {
		return wrapError(http.StatusNotFound, err)
	}
	return wrapError(http.StatusInternalServerError, err)
}

func tonicErrorHook(_ *gin.Context, err error) (int, interface{}) {
	if _, ok := err.(tonic.BindError); ok {
		return http.StatusBadRequest, wrapError(http.StatusBadRequest, err)
	}
	if httpErr, ok := err.(httpError); ok {
		return httpErr.StatusCode, httpErr
	}
	return http.StatusInternalServerError, wrapError(http.StatusInternalServerError, err)
}
