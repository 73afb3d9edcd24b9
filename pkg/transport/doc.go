// Package transport defines the operation handler contract and the
// middleware chain shared by the dojo transports.
//
// The HTTP adapter (pkg/transport/http) and the MCP server
// (pkg/transport/mcp) both turn incoming calls into a Request naming one
// Operation and carrying its JSON arguments. A single Handler, wrapped in
// Recovery, RequestID and Logging middleware, serves both. Errors are
// mapped to HTTP status codes and JSON bodies by WriteError.
package transport
