package vectorstore

import "github.com/maverikod/vvz-rpc-clients/internal/jsonrpc"

// Error types surfaced by the client. Inspect with errors.As:
//
//	var ve *vectorstore.ValidationError
//	if errors.As(err, &ve) { ... }
type (
	// ValidationError indicates malformed input or a missing required
	// confirmation.
	ValidationError = jsonrpc.ValidationError

	// ResourceNotFoundError indicates the record (or its text) does not
	// exist.
	ResourceNotFoundError = jsonrpc.NotFoundError

	// AuthenticationError indicates the caller is not authorized.
	AuthenticationError = jsonrpc.AuthenticationError

	// RPCError is any other service error, carrying a code and message.
	RPCError = jsonrpc.RPCError

	// ConnectionError indicates a transport-level failure.
	ConnectionError = jsonrpc.ConnectionError

	// TimeoutError indicates the call exceeded its deadline.
	TimeoutError = jsonrpc.TimeoutError
)
