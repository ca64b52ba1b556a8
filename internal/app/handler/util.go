package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/go-playground/validator/v10"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/model"
	"proxymart/internal/app/provider"
)

// readBody into json struct
func readBody(r *http.Request, v interface{}) error {
	body, err := ioutil.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return fmt.Errorf("body read: %w", err)
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

type jsonError struct {
	Message string `json:"error"`
}

// WriteError formatted in json
func WriteError(w http.ResponseWriter, err error, statusCode int) {
	WriteResponse(w, &jsonError{Message: err.Error()}, statusCode)
}

// WriteResponse formatted in json
func WriteResponse(w http.ResponseWriter, v interface{}, statusCode int) {
	resBody, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(resBody)
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Rejections
// carry the upstream reason; unavailability is surfaced as retryable.
func writeDomainError(w http.ResponseWriter, err error) {
	var rejected *provider.RejectedError
	if errors.As(err, &rejected) {
		WriteError(w, rejected, http.StatusBadGateway)
		return
	}

	switch {
	case errors.Is(err, apperr.ErrNotFound):
		WriteError(w, err, http.StatusNotFound)
	case errors.Is(err, apperr.ErrInsufficientFunds):
		WriteError(w, err, http.StatusPaymentRequired)
	case errors.Is(err, apperr.ErrProviderNotSupported):
		WriteError(w, err, http.StatusBadRequest)
	case errors.Is(err, provider.ErrUnavailable):
		WriteError(w, err, http.StatusServiceUnavailable)
	case errors.Is(err, apperr.ErrInvalidSignature):
		WriteError(w, err, http.StatusForbidden)
	case errors.Is(err, apperr.ErrInvalidTransition):
		WriteError(w, err, http.StatusConflict)
	case errors.Is(err, apperr.ErrInvalidInput):
		WriteError(w, err, http.StatusBadRequest)
	case errors.Is(err, apperr.ErrConflict):
		WriteError(w, err, http.StatusConflict)
	case errors.Is(err, apperr.ErrUnauthorized):
		WriteError(w, err, http.StatusUnauthorized)
	case errors.Is(err, apperr.ErrForbidden):
		WriteError(w, err, http.StatusForbidden)
	default:
		WriteError(w, err, http.StatusInternalServerError)
	}
}

type ValidationErrorResponse struct {
	Errors ValidationErrors `json:"errors"`
}

type ValidationErrors []ValidationError

type ValidationError struct {
	Msg   string `json:"msg"`
	Param string `json:"param"`
	Value string `json:"value"`
}

// validateData and send errors, returns true if no validation errors
func validateData(w http.ResponseWriter, v interface{}) bool {
	validate := validator.New()
	err := validate.Struct(v)
	if err != nil {
		errors := make(ValidationErrors, 0)
		for _, err := range err.(validator.ValidationErrors) {
			errors = append(errors, ValidationError{
				Msg:   err.Error(),
				Param: err.Field(),
				Value: fmt.Sprintf("%v", err.Value()),
			})
		}
		writeValidationErrors(w, errors)
		return false
	}

	return true
}

// writeValidationErrors formatted in json
func writeValidationErrors(w http.ResponseWriter, errors ValidationErrors) {
	WriteResponse(w, ValidationErrorResponse{errors}, http.StatusBadRequest)
}

type ContextKeyUser struct{}

func ReadContextUser(ctx context.Context) (*model.User, error) {
	v := ctx.Value(ContextKeyUser{})
	if user, ok := v.(*model.User); ok {
		return user, nil
	}

	return nil, apperr.ErrUnauthorized
}
