package main

import (
	"context"
	"encoding/json"
)

// formFields prints the template fields grouped by kind.
func (cli *commandLine) formFields(ctx context.Context) error {
	inv, err := cli.formSvc.Inventory(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(inv)
}
