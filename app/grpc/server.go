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
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	SessionServiceName = "uptask.session.v1.SessionService"
	verifyMethod       = "/" + SessionServiceName + "/Verify"
)

type sessionVerifier interface {
	VerifySession(ctx context.Context, signed string) (*entity.User, error)
}

// SessionServer resolves UpTask session tokens for other backend services.
// Requests and responses use the well-known wrapper and struct messages so
// no generated code is needed on either side.
type SessionServer struct {
	sessions sessionVerifier
}

func NewSessionServer(sessions sessionVerifier) *SessionServer {
	return &SessionServer{sessions: sessions}
}

func (s *SessionServer) Verify(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	token := strings.TrimSpace(req.GetValue())
	if token == "" {
		logrus.Debug("Verify session validation failed (grpc)")
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}

	caller := CallerServiceFromContext(ctx)
	user, err := s.sessions.VerifySession(ctx, token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSession) {
			logrus.WithField("caller_service", caller).Debug("Session rejected (grpc)")
			return structpb.NewStruct(map[string]any{"valid": false})
		}
		logrus.WithError(err).WithField("caller_service", caller).Error("Verify session failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return structpb.NewStruct(map[string]any{
		"valid":   true,
		"user_id": float64(user.ID),
		"email":   user.Email,
		"name":    user.Name,
	})
}

type sessionServiceServer interface {
	Verify(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

func verifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(sessionServiceServer).Verify(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: verifyMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(sessionServiceServer).Verify(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

var sessionServiceDesc = gogrpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*sessionServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{MethodName: "Verify", Handler: verifyHandler},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "uptask/session/v1/session.proto",
}

func RegisterSessionServer(registrar gogrpc.ServiceRegistrar, srv *SessionServer) {
	registrar.RegisterService(&sessionServiceDesc, srv)
}

// SessionClient is the caller side of SessionService.
type SessionClient struct {
	conn gogrpc.ClientConnInterface
}

func NewSessionClient(conn gogrpc.ClientConnInterface) *SessionClient {
	return &SessionClient{conn: conn}
}

func (c *SessionClient) Verify(ctx context.Context, token string, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, verifyMethod, wrapperspb.String(token), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
