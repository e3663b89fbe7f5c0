package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-uptask/app/entity"
	"github.com/vibast-solutions/ms-go-uptask/app/service"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type callerServiceKey struct{}

type apiKeyValidator interface {
	ValidateInternalAPIKey(ctx context.Context, apiKey string) (*entity.InternalAPIKey, error)
}

// APIKeyUnaryInterceptor admits calls carrying an active x-api-key that was
// granted requiredAccess.
func APIKeyUnaryInterceptor(authService apiKeyValidator, requiredAccess string) gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		key, err := validateIncomingAPIKey(ctx, authService, requiredAccess)
		if err != nil {
			return nil, err
		}

		return handler(context.WithValue(ctx, callerServiceKey{}, key.ServiceName), req)
	}
}

func APIKeyStreamInterceptor(authService apiKeyValidator, requiredAccess string) gogrpc.StreamServerInterceptor {
	return func(srv any, ss gogrpc.ServerStream, _ *gogrpc.StreamServerInfo, handler gogrpc.StreamHandler) error {
		key, err := validateIncomingAPIKey(ss.Context(), authService, requiredAccess)
		if err != nil {
			return err
		}

		ctx := context.WithValue(ss.Context(), callerServiceKey{}, key.ServiceName)
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// CallerServiceFromContext names the service whose key authenticated the call.
func CallerServiceFromContext(ctx context.Context) string {
	name, _ := ctx.Value(callerServiceKey{}).(string)
	return name
}

func validateIncomingAPIKey(ctx context.Context, authService apiKeyValidator, requiredAccess string) (*entity.InternalAPIKey, error) {
	apiKey := incomingAPIKeyFromMetadata(ctx)
	if apiKey == "" {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	key, err := authService.ValidateInternalAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInternalAPIKey) {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		logrus.WithError(err).Error("Internal api key validation failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	if !key.Allows(requiredAccess) {
		logrus.WithField("caller_service", key.ServiceName).Warn("Internal api key lacks access (grpc)")
		return nil, status.Error(codes.PermissionDenied, "forbidden")
	}

	return key, nil
}

func incomingAPIKeyFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("x-api-key")
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

type wrappedServerStream struct {
	gogrpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
