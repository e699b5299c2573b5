package documentai

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ekyc/internal/document/providers"
)

// translate maps a Document AI failure onto the backend error taxonomy.
func translate(ctx context.Context, err error) error {
	if ctxErr := providers.FromContext(BackendName, ctx.Err()); ctxErr != nil {
		return ctxErr
	}
	if ctxErr := providers.FromContext(BackendName, err); ctxErr != nil {
		return ctxErr
	}

	st, ok := status.FromError(err)
	if !ok {
		return providers.NewBackendError(providers.ErrorOutage, BackendName, "transport failure", err)
	}

	var category providers.ErrorCategory
	switch st.Code() {
	case codes.DeadlineExceeded:
		category = providers.ErrorTimeout
	case codes.Canceled:
		category = providers.ErrorCanceled
	case codes.Unavailable, codes.Aborted:
		category = providers.ErrorOutage
	case codes.ResourceExhausted:
		category = providers.ErrorRateLimited
	case codes.Unauthenticated, codes.PermissionDenied:
		category = providers.ErrorAuthentication
	case codes.NotFound:
		category = providers.ErrorNotFound
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		category = providers.ErrorBadRequest
	default:
		category = providers.ErrorInternal
	}
	return providers.NewBackendError(category, BackendName, st.Message(), err)
}

func badData(message string) error {
	return providers.NewBackendError(providers.ErrorBadData, BackendName, message, nil)
}
