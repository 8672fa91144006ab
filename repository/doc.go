// Package repository defines a generic, ORM-independent repository contract
// for CRUD operations, filter queries, pagination, transactions and upserts.
// Implementations live in bunrepo and gormrepo.
package repository
