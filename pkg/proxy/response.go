package proxy

import (
	"strconv"
)

// ContentType is the content type of intercepted responses.
const ContentType = "application/octet-stream"

// BuildResponse wraps body in the minimal HTTP response the client accepts.
func BuildResponse(body []byte) []byte {
	var b []byte
	b = append(b, "HTTP/1.1 200 OK\r\n"...)
	b = append(b, "content-type: "+ContentType+"\r\n"...)
	b = append(b, "content-length: "+strconv.Itoa(len(body))+"\r\n"...)
	b = append(b, "connection: keep-alive\r\n"...)
	b = append(b, "\r\n"...)
	return append(b, body...)
}
