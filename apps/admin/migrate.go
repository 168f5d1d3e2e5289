package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) migrate(ctx context.Context) error {
	if err := cli.store.Migrate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "database migrated")
	return nil
}
