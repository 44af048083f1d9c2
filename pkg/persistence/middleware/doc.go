// Package middleware wraps snapshot stores with encryption at rest and
// redaction of sensitive workflow files.
package middleware
