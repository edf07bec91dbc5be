// Package context holds the request scoped values shared by transports,
// services and log handlers.
package context

type contextKey string
