// Package patcher redirects the game client to the local proxy by rewriting
// the server address compiled into its shared library.
//
// The address is a fixed-length string inside the binary, so the local
// address is padded with NUL bytes to the length of the original one and
// must not be longer. Patching and unpatching only touch exact matches,
// which makes both operations idempotent.
package patcher
