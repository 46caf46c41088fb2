// Package backend implements the client side of the search backend
// protocol.
//
// A query is one line of text, "page <N> <clauses>", written over a fresh
// TCP connection whose write side is then closed. The backend answers with
// a raw level-list payload (see package wire) and closes the connection,
// or says nothing at all. There is no framing: the reply is whatever
// arrives before the backend closes or goes quiet for the read timeout.
//
//	client := backend.New(cfg.Backend, backend.WithRecorder(collector))
//	raw, err := client.Query(ctx, 1, `title "the"`)
package backend
