package grpc_guard_app

import (
	"context"
	"strings"

	model "go_request_guard/internal/domain/model/guard"
	"go_request_guard/utils"

	"github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type CorsEngine interface {
	Evaluate(req *model.RequestDescriptor) *model.ValidationResult
}

type HeaderEngine interface {
	Evaluate(req *model.RequestDescriptor) *model.ValidationResult
}

// UnaryServerInterceptor rejects calls from a denied origin with PermissionDenied and calls
// with blocking header errors with InvalidArgument. Calls without an origin skip the CORS check.
func UnaryServerInterceptor(cors CorsEngine, headers HeaderEngine) grpc.UnaryServerInterceptor {
	log := utils.GetLogger().WithField("component", "grpc_guard")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		desc := NewDescriptorFromGRPC(ctx, info.FullMethod, req)
		if err := check(cors, headers, desc); err != nil {
			log.WithFields(logrus.Fields{
				"method": info.FullMethod,
				"code":   status.Code(err).String(),
			}).Debug("grpc call rejected")
			return nil, err
		}
		return handler(ctx, req)
	}
}

func check(cors CorsEngine, headers HeaderEngine, desc *model.RequestDescriptor) error {
	if cors != nil && desc.GetOrigin() != "" {
		if res := cors.Evaluate(desc); !res.Allowed {
			return status.Error(codeFor(res, codes.PermissionDenied), res.Reason)
		}
	}

	res := headers.Evaluate(desc)
	if res.Valid {
		return nil
	}
	blocking := res.BlockingErrors()
	msgs := make([]string, 0, len(blocking))
	violations := make([]*errdetails.BadRequest_FieldViolation, 0, len(blocking))
	for _, e := range blocking {
		msgs = append(msgs, e.Message)
		violations = append(violations, &errdetails.BadRequest_FieldViolation{
			Field:       e.Header,
			Description: e.Message,
		})
	}

	st := status.New(codeFor(res, codes.InvalidArgument), "Header validation failed: "+strings.Join(msgs, "; "))
	if detailed, err := st.WithDetails(&errdetails.BadRequest{FieldViolations: violations}); err == nil {
		st = detailed
	}
	return st.Err()
}

// codeFor maps a fail-closed result to Internal.
func codeFor(res *model.ValidationResult, deny codes.Code) codes.Code {
	if res.StatusCode >= 500 {
		return codes.Internal
	}
	return deny
}
