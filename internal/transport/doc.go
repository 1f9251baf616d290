// Package transport provides replica.Channel implementations.
//
// Memory delivers synchronously inside one process and is what the harness
// and tests use. Redis carries wire-encoded messages over Redis pub/sub so
// replicas in separate processes can pair up.
package transport
