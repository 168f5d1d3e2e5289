package main

import (
	"context"
	"fmt"

	"github.com/enrollgsrp/gsrp-enroll/core/user"
)

// addUser updates or creates a confirmed user.User
func (cli *commandLine) addUser(ctx context.Context, name, email, pwd string, isAdmin bool) error {
	usr, err := cli.usrSvc.Upsert(ctx, user.NewUser{Name: name, Email: email, Password: pwd}, isAdmin)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %s (%s) saved, admin: %t\n", usr.Email, usr.ID, usr.IsAdmin)
	return nil
}
