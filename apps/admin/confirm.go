package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

var errNoToken = errors.New("user has no confirmation token")

func (cli *commandLine) confirm(ctx context.Context, email string) error {
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsConfirmed {
		if usr.ConfirmationToken == "" {
			return errNoToken
		}
		if usr, err = cli.usrSvc.Confirm(ctx, usr.ConfirmationToken); err != nil {
			return err
		}
	}
	fmt.Fprintf(cli.out, "%s is confirmed\n", usr.Email)
	return nil
}
