package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"account-service/internal/service"
)

// termReadPassword is a seam for tests that must not touch the terminal.
var termReadPassword = term.ReadPassword

type app struct {
	users        service.UserService
	fields       service.FieldService
	out          io.Writer
	readPassword func(w io.Writer) (string, error)
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create-staff":
		return a.createStaff(ctx, rest)
	case "set-roles":
		return a.setRoles(ctx, rest)
	case "add-field":
		return a.addField(ctx, rest)
	case "list-users":
		return a.listUsers(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) createStaff(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-staff", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "email of the new staff user")
	name := fs.String("name", "", "display name")
	author := fs.Bool("author", false, "also grant the author role")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("create-staff: -email is required")
	}

	password, err := a.readPassword(a.out)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	if _, err := a.users.CreateIdentified(ctx, service.RegisterInput{
		Email:    *email,
		Password: password,
		Name:     *name,
	}); err != nil {
		return err
	}

	staff := true
	p, err := a.users.SetRoles(ctx, *email, &staff, author)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created staff user %d (%s)\n", p.ID, p.Identified.Email)
	return nil
}

func (a *app) setRoles(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set-roles", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "email of the user to change")
	staff := fs.Bool("staff", false, "staff role")
	author := fs.Bool("author", false, "author role")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("set-roles: -email is required")
	}

	// only flags given on the command line change a role
	var isStaff, isAuthor *bool
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "staff":
			isStaff = staff
		case "author":
			isAuthor = author
		}
	})
	if isStaff == nil && isAuthor == nil {
		return errors.New("set-roles: pass -staff and/or -author")
	}

	p, err := a.users.SetRoles(ctx, *email, isStaff, isAuthor)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "user %d: staff=%t author=%t\n", p.ID, p.Identified.IsStaff, p.Identified.IsAuthor)
	return nil
}

func (a *app) addField(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-field", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("name", "", "field of study name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	field, err := a.fields.Create(ctx, nil, *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "added field %d (%s)\n", field.ID, field.Name)
	return nil
}

func (a *app) listUsers(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list-users", flag.ContinueOnError)
	fs.SetOutput(a.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	users, err := a.users.ListIdentified(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tSTAFF\tAUTHOR")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\n", u.ID, u.Identified.Email, u.Name, u.Identified.IsStaff, u.Identified.IsAuthor)
	}
	return tw.Flush()
}

func promptPassword(w io.Writer) (string, error) {
	fmt.Fprint(w, "Enter password: ")
	pw, err := termReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
