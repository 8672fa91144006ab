// Package filter describes ORM-independent query predicates. A Filter holds a
// single column comparison and a Seq combines filters and nested sequences
// with AND or OR. Backends implement Compiler to translate a tree into their
// own condition type.
package filter
