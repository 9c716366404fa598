package grpc_guard_app

import (
	"context"
	"net"
	"strings"

	model "go_request_guard/internal/domain/model/guard"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// NewDescriptorFromGRPC builds the engine view of a unary call. gRPC calls are POSTs
// to the full method path; a proto request is rendered as JSON for body_json conditions.
func NewDescriptorFromGRPC(ctx context.Context, fullMethod string, req any) *model.RequestDescriptor {
	md, _ := metadata.FromIncomingContext(ctx)
	headers := make(map[string]string, len(md))
	for k, v := range md {
		// binary metadata is not a header value
		if strings.HasSuffix(k, "-bin") {
			continue
		}
		headers[k] = strings.Join(v, ", ")
	}
	if _, ok := headers["content-type"]; !ok {
		headers["content-type"] = "application/grpc"
	}

	desc := model.NewRequestDescriptor("POST", fullMethod, headers)
	desc.IP = peerIP(ctx)
	if forwarded := firstForwarded(headers["x-forwarded-for"]); forwarded != "" {
		desc.IP = forwarded
	}

	if msg, ok := req.(proto.Message); ok && msg != nil {
		if body, err := protojson.Marshal(msg); err == nil {
			desc.Body = body
		}
	}
	return desc
}

func peerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}

func firstForwarded(xff string) string {
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}
