package fakebackend

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// authError mirrors the auth API error body.
type authError struct {
	Code             int    `json:"code,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
	Msg              string `json:"msg,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// restError mirrors the REST API error body.
type restError struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details"`
	Hint    *string `json:"hint"`
}

// storageError mirrors the storage API error body.
type storageError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func respondJSON(ctx *fasthttp.RequestCtx, status int, payload any) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func respondAuthError(ctx *fasthttp.RequestCtx, status int, code, msg string) {
	respondJSON(ctx, status, authError{Code: status, ErrorCode: code, Msg: msg})
}

func respondGrantError(ctx *fasthttp.RequestCtx, description string) {
	respondJSON(ctx, fasthttp.StatusBadRequest, authError{Error: "invalid_grant", ErrorDescription: description})
}

func respondRESTError(ctx *fasthttp.RequestCtx, status int, code, msg string) {
	respondJSON(ctx, status, restError{Code: code, Message: msg})
}

func respondStorageError(ctx *fasthttp.RequestCtx, status int, errName, msg string) {
	respondJSON(ctx, status, storageError{StatusCode: itoa(status), Error: errName, Message: msg})
}

func decodeBody(ctx *fasthttp.RequestCtx, v any) bool {
	body := ctx.PostBody()
	if len(body) == 0 {
		return false
	}
	return json.Unmarshal(body, v) == nil
}
