// Package middleware contains HTTP middleware for the launcher's front server.
//
// # Components
//
//   - RayID: Assigns a Request ID (RayID) to every incoming request, or keeps
//     the one the client sent, stores it in the Fiber locals for logging and
//     forwards it to the worker in the X-Request-ID header.
package middleware
