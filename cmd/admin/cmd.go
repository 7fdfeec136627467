package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/iliyamo/school-rfid-admin/internal/database"
	"github.com/iliyamo/school-rfid-admin/internal/model"
	"github.com/iliyamo/school-rfid-admin/internal/repository"
	"github.com/iliyamo/school-rfid-admin/internal/utils"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = database.Migrate  // mockable
	versionFunc      = database.Version  // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sqlx.DB
	users      repository.UserStore
	bcryptCost int
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate [up|version]                 - apply pending migrations or print the schema version")
	fmt.Fprintln(cli.out, "  createsuperadmin -username USERNAME - create a superadmin; the password is prompted")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME    - reset a user's password; the password is prompted")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createCmd := flag.NewFlagSet("createsuperadmin", flag.ContinueOnError)
	createCmd.SetOutput(cli.out)
	createUname := createCmd.String("username", "", "The new superadmin's username. The password will be prompted next.")

	resetCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetCmd.SetOutput(cli.out)
	resetUname := resetCmd.String("username", "", "The user's username. The password will be prompted next.")

	ctx := context.Background()
	switch args[1] {
	case "migrate":
		return cli.migrate(ctx, args[2:])
	case "createsuperadmin":
		uname, pwd, err := cli.credentials(createCmd, createUname, args[2:])
		if err != nil {
			return err
		}
		return cli.createSuperAdmin(ctx, uname, pwd)
	case "resetpassword":
		uname, pwd, err := cli.credentials(resetCmd, resetUname, args[2:])
		if err != nil {
			return err
		}
		return cli.resetPassword(ctx, uname, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}

// credentials parses -username and prompts for the password.
func (cli *commandLine) credentials(fs *flag.FlagSet, uname *string, args []string) (string, string, error) {
	if err := fs.Parse(args); err != nil {
		return "", "", errHelp
	}
	if strings.TrimSpace(*uname) == "" {
		fs.Usage()
		return "", "", errHelp
	}
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", "", errHelp
	}
	return strings.TrimSpace(*uname), string(pwd), nil
}

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}
	switch cmd {
	case "up":
		return migrateFunc(ctx, cli.db)
	case "version":
		v, err := versionFunc(ctx, cli.db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "schema version %d\n", v)
		return nil
	default:
		return errors.Errorf("%q: no such migrate command", cmd)
	}
}

func (cli *commandLine) createSuperAdmin(ctx context.Context, uname, pwd string) error {
	hash, err := utils.HashPassword(pwd, cli.bcryptCost)
	if err != nil {
		return err
	}
	u := &model.User{Username: uname, PasswordHash: hash, Role: model.RoleSuperAdmin}
	if err := cli.users.Create(ctx, u); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "superadmin %s created (id %s)\n", u.Username, u.ID)
	return nil
}

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	u, err := cli.users.GetByUsername(ctx, uname)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(pwd, cli.bcryptCost)
	if err != nil {
		return err
	}
	_, err = cli.users.Update(ctx, u.ID, model.UserPatch{PasswordHash: &hash})
	return err
}
