// Package client implements the HTTP client the harness uses to drive the
// system under test. It covers session authentication and resource CRUD
// under the project/collection/document hierarchy, with a bearer-token
// header on every authenticated call.
//
// The client distinguishes three failure shapes that the error classifier
// relies on: transport errors (the request never completed), APIError (the
// server answered with a non-2xx status), and ValidationError (the client
// library rejected the call before sending anything).
package client
