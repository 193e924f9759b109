package api

import (
	"context"

	"github.com/terra-clan/grading-engine/internal/models"
)

type contextKey string

const clientContextKey contextKey = "grading_api_client"

// ContextWithClient stores the authenticated caller for downstream
// permission checks. Set once by the auth middleware.
func ContextWithClient(ctx context.Context, client *models.ApiClient) context.Context {
	return context.WithValue(ctx, clientContextKey, client)
}

// ClientFromContext returns the authenticated caller, or nil when the
// request never passed authentication.
func ClientFromContext(ctx context.Context) *models.ApiClient {
	client, ok := ctx.Value(clientContextKey).(*models.ApiClient)
	if !ok {
		return nil
	}
	return client
}
