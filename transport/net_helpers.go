package transport

import "net"

// netListen is shared by variants (websocket, http2) that need a raw TCP
// listener underneath an http.Server.
func netListen(address string) (net.Listener, error) {
	return net.Listen("tcp", address)
}
