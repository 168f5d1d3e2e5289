package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/enrollgsrp/gsrp-enroll/core/enrollform"
	"github.com/enrollgsrp/gsrp-enroll/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type (
	migrator interface {
		Migrate(ctx context.Context) error
	}

	formInspector interface {
		Inventory(ctx context.Context) (enrollform.Inventory, error)
	}

	commandLine struct {
		store   migrator
		usrSvc  user.Service
		formSvc formInspector
		out     io.Writer
	}
)

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL [-admin] - create or update a confirmed user")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  confirm -email EMAIL - confirm user's registration")
	fmt.Fprintln(cli.out, "  migrate - create the database tables or indexes")
	fmt.Fprintln(cli.out, "  formfields - list the fields of the enrollment form template")
}

// promptPassword reads a password without echo. An empty password is a usage error.
func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant administrator rights.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	confirmCmd := flag.NewFlagSet("confirm", flag.ExitOnError)
	confirmEmail := confirmCmd.String("email", "", "The user's email.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(ctx, *addUserName, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(ctx, *resetPasswordEmail, pwd)

	case "confirm":
		if err := confirmCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *confirmEmail == "" {
			confirmCmd.Usage()
			return errHelp
		}
		return cli.confirm(ctx, *confirmEmail)

	case "migrate":
		return cli.migrate(ctx)

	case "formfields":
		return cli.formFields(ctx)

	default:
		cli.printUsage()
		return errHelp
	}
}
