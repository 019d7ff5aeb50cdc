// Package httpapi is the REST relay in front of the engine. It decodes
// requests, maps them onto engine.Submit and the engine's read operations,
// and translates ir.Error codes into HTTP statuses. It holds no ledger
// logic of its own.
package httpapi
