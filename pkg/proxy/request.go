package proxy

import (
	"bufio"
	"bytes"
	"fmt"
	"net/textproto"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/edelkas/cuse/pkg/wire"
)

// Request is the part of a raw client request the engine needs to route it.
// The raw bytes are kept for forwarding.
type Request struct {
	Method   string
	Path     string
	Endpoint string
	Query    url.Values
	Raw      []byte
}

// ParseRequest reads the request line of raw.
func ParseRequest(raw []byte) (*Request, error) {
	line, _, _ := bytes.Cut(raw, []byte("\n"))
	fields := strings.Fields(string(line))
	if len(fields) != 3 || !strings.HasPrefix(fields[2], "HTTP/") {
		return nil, fmt.Errorf("%w: request line %q", ErrMalformedRequest, truncate(string(line), 64))
	}

	u, err := url.ParseRequestURI(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		// Keep whatever parsed, the client only sends simple pairs.
		query = url.Values{}
		for _, pair := range strings.Split(u.RawQuery, "&") {
			k, v, _ := strings.Cut(pair, "=")
			query.Set(k, v)
		}
	}

	return &Request{
		Method:   strings.ToUpper(fields[0]),
		Path:     u.Path,
		Endpoint: path.Base(u.Path),
		Query:    query,
		Raw:      raw,
	}, nil
}

// RequestComplete reports whether buf holds a whole request: the header
// block and as many body bytes as Content-Length announces.
func RequestComplete(buf []byte) bool {
	end := bytes.Index(buf, []byte("\r\n\r\n"))
	if end < 0 {
		return false
	}

	head := buf[:end+4]
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[i+1:]
	}
	hdr, err := textproto.NewReader(bufio.NewReader(bytes.NewReader(head))).ReadMIMEHeader()
	if err != nil {
		return false
	}
	cl := hdr.Get("Content-Length")
	if cl == "" {
		return true
	}
	n, err := strconv.Atoi(cl)
	if err != nil || n < 0 {
		return true
	}
	return len(buf)-(end+4) >= n
}

// Params are the query parameters of an intercepted level query.
type Params struct {
	Mode     wire.Mode
	Page     uint32
	Category uint32
}

// ParseParams reads the mode, page and category of a level query. A search
// parameter forces the free-text search category, otherwise qt is used,
// defaulting to wire.CategoryDefault.
func ParseParams(q url.Values) Params {
	p := Params{
		Mode:     wire.Mode(atou(q.Get("mode"))),
		Page:     atou(q.Get("page")),
		Category: wire.CategoryDefault,
	}
	switch {
	case q.Has("search"):
		p.Category = wire.CategorySearch
	case q.Has("qt"):
		p.Category = atou(q.Get("qt"))
	}
	return p
}

// atou parses the leading digits of s, like the client does. Anything
// unparsable is zero.
func atou(s string) uint32 {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseUint(s[:end], 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
