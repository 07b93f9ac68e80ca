// Package middleware contains HTTP middleware for the Fiber application.
//
// It provides cross-cutting concerns that sit between the request and the handler.
//
// # Components
//
//   - auth: Validates the X-API-Key header so only trusted schedulers can trigger runs.
//     Paths such as /health can be exempted.
//   - rayid: Assigns every incoming request a ray id (uuid), stores it in the context
//     locals and echoes it in the X-Ray-ID response header for tracing.
//
// These middleware components are registered globally by the serve command, ray id first.
package middleware
