// Package gormrepo implements repository.Repository on top of GORM using
// clause expressions.
package gormrepo
