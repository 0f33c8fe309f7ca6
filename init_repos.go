// Package main: repository layer setup.
package main

import (
	"database/sql"

	"github.com/khakishop/server/repository"
)

// Repositories holds every repository instance.
type Repositories struct {
	User    repository.UserRepository
	Session repository.SessionRepository
	Image   repository.ImageRepository
	Product repository.ProductRepository
}

// initRepositories builds the SQLite repositories over one connection.
func initRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		User:    repository.NewSQLiteUserRepo(db),
		Session: repository.NewSQLiteSessionRepo(db),
		Image:   repository.NewSQLiteImageRepo(db),
		Product: repository.NewSQLiteProductRepo(db),
	}
}
