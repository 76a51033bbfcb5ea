// Package middleware groups the HTTP middleware used by the server:
//
//   - rayid: assigns a per-request ray id for log correlation
//   - auth: API key enforcement for every route
package middleware
