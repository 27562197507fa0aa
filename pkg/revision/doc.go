// Package revision implements nested, transactional change-capture scoping.
//
// Code opens a scope around a unit of work; any tracked entity mutation that
// fires inside the scope is collected, and when the outermost scope for a
// transactional resource closes cleanly the accumulated captures are emitted
// as a single revision to the registry's listeners, inside the same
// transaction that wrapped the scope.
//
// Scopes nest: an inner scope can fail and be discarded without poisoning the
// outer scope, while a successful inner scope folds its state back into the
// outer one. The scope stack travels through context.Context, so each request
// or goroutine owns an independent stack.
package revision
