// Package operator implements the gRPC operator API.
//
// Requests and responses are protobuf well-known types (Empty, wrappers and
// Struct), so the service needs no generated code and runs on the default
// proto codec. The package provides the service descriptor, a server
// adapting a business service to it and a typed client.
package operator
