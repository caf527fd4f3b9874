package gateway

import (
	"context"
	"time"

	"github.com/bx-d/corerpc/client"
	"github.com/bx-d/corerpc/codec"
	"github.com/bx-d/corerpc/message"
	"github.com/bx-d/corerpc/rpcerr"
	"github.com/bx-d/corerpc/transport"
	"github.com/bx-d/corerpc/value"
)

// ServiceProxy fronts one backend service: given a service method,
// headers, and a body it builds a TransportRequest, calls the client
// (which applies retry and circuit-breaking on its own), then runs the
// route's response transformations over the decoded body (spec §4.6
// "Service proxy").
type ServiceProxy struct {
	Service string
	Client  *client.Client
	Codecs  *codec.Registry
}

// NewServiceProxy returns a proxy for service, driving calls through cl
// and decoding/encoding bodies via reg (codec.Default if nil).
func NewServiceProxy(service string, cl *client.Client, reg *codec.Registry) *ServiceProxy {
	if reg == nil {
		reg = codec.Default
	}
	return &ServiceProxy{Service: service, Client: cl, Codecs: reg}
}

// Invoke calls endpoint on the proxy's service and applies transforms to
// a successful, structured response body.
func (p *ServiceProxy) Invoke(ctx context.Context, endpoint string, headers message.Headers, body []byte, timeout time.Duration, transforms []Transform) (*client.TransportResponse, error) {
	resp, err := p.Client.Call(ctx, &client.TransportRequest{
		Service:  p.Service,
		Endpoint: endpoint,
		Body:     body,
		Headers:  headers,
		Timeout:  timeout,
	})
	if err != nil {
		var terr *transport.Error
		if transport.As(err, &terr) && terr.Kind == transport.Timeout {
			return nil, rpcerr.Timeout(err.Error())
		}
		return nil, rpcerr.ServiceUnavailable(err.Error())
	}
	if resp.Status >= 400 || len(transforms) == 0 {
		return resp, nil
	}

	c, ok := p.Codecs.Lookup(resp.Headers.Get("Content-Type"))
	if !ok {
		c, ok = p.Codecs.Sniff(resp.Body)
		if !ok {
			return resp, nil
		}
	}

	var native any
	if err := c.Decode(resp.Body, &native); err != nil {
		return resp, nil
	}
	transformed := ApplyAll(transforms, value.FromNative(native))
	encoded, err := c.Encode(transformed.ToNative())
	if err != nil {
		return resp, nil
	}
	resp.Body = encoded
	return resp, nil
}
