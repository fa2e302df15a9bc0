package testutil

import (
	"net/http"

	"quorum/pkg/requestcontext"
)

// WithOperator sets the registration desk operator on the request context,
// as the ClientMetadata middleware would from the X-Operator header.
func WithOperator(req *http.Request, operator string) *http.Request {
	return req.WithContext(requestcontext.WithOperator(req.Context(), operator))
}

// WithRequestID sets a request ID on the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
