package inmemdb

import (
	"sync"

	"github.com/enrollgsrp/gsrp-enroll/core/application"
	"github.com/enrollgsrp/gsrp-enroll/core/user"
)

type (
	DB struct {
		user        *userTable
		application *applicationTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	applicationTable struct {
		sync.RWMutex
		table map[string]*application.Application
	}
)

func Open() *DB {
	return &DB{
		user:        &userTable{table: make(map[string]*user.User)},
		application: &applicationTable{table: make(map[string]*application.Application)},
	}
}

// Reset drops every record.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.application.Lock()
	db.application.table = make(map[string]*application.Application)
	db.application.Unlock()
}
