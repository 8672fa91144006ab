// Package bunrepo implements repository.Repository on top of bun. Filters
// compile into WHERE fragments with positional arguments, Extra maps onto
// bun's Relation, OrderExpr and For clauses.
package bunrepo
