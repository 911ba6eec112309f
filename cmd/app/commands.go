// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"text/tabwriter"

	"codeberg.org/oliverandrich/mdn-accounts/internal/database"
	"codeberg.org/oliverandrich/mdn-accounts/internal/models"
	"codeberg.org/oliverandrich/mdn-accounts/internal/repository"
	"codeberg.org/oliverandrich/mdn-accounts/internal/server"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/auth"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/gate"
	"codeberg.org/oliverandrich/mdn-accounts/internal/services/settings"
	fggate "github.com/goliatone/go-featuregate/gate"
	"github.com/urfave/cli/v3"
)

var errMissingArgs = errors.New("missing arguments")

type repoAction func(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error

// withRepo opens the configured database for a management command.
func withRepo(fn repoAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		server.SetupLogger(cmd.String("log-level"), cmd.String("log-format"))

		db, err := database.Open(cmd.String("database-dsn"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() {
			_ = database.Close(db)
		}()

		return fn(ctx, cmd, repository.New(db))
	}
}

// args returns exactly n positional arguments.
func args(cmd *cli.Command, n int) ([]string, error) {
	if cmd.Args().Len() != n {
		return nil, fmt.Errorf("%w: %s %s", errMissingArgs, cmd.FullName(), cmd.ArgsUsage)
	}
	return cmd.Args().Slice(), nil
}

func flagCommand() *cli.Command {
	return &cli.Command{
		Name:  "flag",
		Usage: "Manage feature flags",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Create or update a flag",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "everyone", Usage: "Force the flag for everyone: true, false or unset"},
					&cli.BoolFlag{Name: "superusers", Usage: "Enable for superusers"},
					&cli.BoolFlag{Name: "staff", Usage: "Enable for staff"},
					&cli.BoolFlag{Name: "authenticated", Usage: "Enable for signed-in users"},
					&cli.StringFlag{Name: "note", Usage: "Description of the flag"},
				},
				Action: withRepo(flagSet),
			},
			{
				Name:   "list",
				Usage:  "List all flags",
				Action: withRepo(flagList),
			},
			{
				Name:      "delete",
				Usage:     "Delete a flag",
				ArgsUsage: "NAME",
				Action: withRepo(func(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error {
					a, err := args(cmd, 1)
					if err != nil {
						return err
					}
					if err := repo.DeleteFlag(ctx, a[0]); err != nil {
						if errors.Is(err, sql.ErrNoRows) {
							return fmt.Errorf("flag %q not found", a[0])
						}
						return err
					}
					_, _ = fmt.Fprintf(cmd.Root().Writer, "Deleted flag %s\n", a[0])
					return nil
				}),
			},
		},
	}
}

// cliActor records flag changes made from the command line.
var cliActor = fggate.ActorRef{ID: "cli", Type: "system", Name: "app flag set"}

// flagSet only changes the attributes that were passed.
func flagSet(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error {
	a, err := args(cmd, 1)
	if err != nil {
		return err
	}
	name := a[0]
	flags := gate.NewFlags(repo)

	if cmd.IsSet("everyone") {
		everyone, err := gate.ParseEveryone(cmd.String("everyone"))
		if err != nil {
			return err
		}
		if err := flags.SetEveryone(ctx, name, everyone, cliActor); err != nil {
			return err
		}
	}
	for option, role := range map[string]string{
		"superusers":    gate.RoleSuperuser,
		"staff":         gate.RoleStaff,
		"authenticated": gate.RoleAuthenticated,
	} {
		if !cmd.IsSet(option) {
			continue
		}
		if cmd.Bool(option) {
			err = flags.Set(ctx, name, gate.Cohort(role), true, cliActor)
		} else {
			err = flags.Unset(ctx, name, gate.Cohort(role), cliActor)
		}
		if err != nil {
			return err
		}
	}
	if cmd.IsSet("note") {
		if err := flags.Annotate(ctx, name, cmd.String("note")); err != nil {
			return err
		}
	}

	saved, err := flags.Get(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		// nothing was passed, store the flag with every switch off
		if err := flags.Annotate(ctx, name, ""); err != nil {
			return err
		}
		saved, err = flags.Get(ctx, name)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.Root().Writer, "Flag %s: everyone=%s\n", saved.Name, gate.FormatEveryone(saved.Everyone))
	return nil
}

func flagList(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error {
	flags, err := gate.NewFlags(repo).List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tEVERYONE\tSUPERUSERS\tSTAFF\tAUTHENTICATED\tNOTE")
	for _, f := range flags {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%t\t%s\n",
			f.Name, gate.FormatEveryone(f.Everyone), f.Superusers, f.Staff, f.Authenticated, f.Note)
	}
	return w.Flush()
}

func settingCommand() *cli.Command {
	return &cli.Command{
		Name:  "setting",
		Usage: "Manage runtime settings",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print the value of a setting",
				ArgsUsage: "KEY",
				Action: withRepo(func(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error {
					a, err := args(cmd, 1)
					if err != nil {
						return err
					}
					value, err := settings.NewStore(repo).Get(ctx, a[0])
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintln(cmd.Root().Writer, value)
					return nil
				}),
			},
			{
				Name:      "set",
				Usage:     "Store a value for a setting",
				ArgsUsage: "KEY VALUE",
				Action: withRepo(func(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error {
					a, err := args(cmd, 2)
					if err != nil {
						return err
					}
					if err := settings.NewStore(repo).Set(ctx, a[0], a[1]); err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.Root().Writer, "Updated %s\n", a[0])
					return nil
				}),
			},
			{
				Name:      "reset",
				Usage:     "Restore the default value of a setting",
				ArgsUsage: "KEY",
				Action: withRepo(func(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error {
					a, err := args(cmd, 1)
					if err != nil {
						return err
					}
					if err := settings.NewStore(repo).Reset(ctx, a[0]); err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.Root().Writer, "Reset %s\n", a[0])
					return nil
				}),
			},
			{
				Name:   "list",
				Usage:  "List all known settings",
				Action: withRepo(settingList),
			},
		},
	}
}

func settingList(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error {
	stored, err := repo.ListSettings(ctx)
	if err != nil {
		return err
	}
	overridden := make(map[string]string, len(stored))
	for _, s := range stored {
		overridden[s.Key] = s.Value
	}

	w := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tSOURCE\tVALUE")
	for _, key := range settings.Keys() {
		value, source := settings.Defaults[key], "default"
		if v, ok := overridden[key]; ok {
			value, source = v, "database"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", key, source, value)
	}
	return w.Flush()
}

func userCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage users",
		Commands: []*cli.Command{
			{
				Name:      "set-password",
				Usage:     "Set the password of a user",
				ArgsUsage: "USERNAME",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "password",
						Usage:    "The new password",
						Required: true,
						Sources:  cli.EnvVars("USER_PASSWORD"),
					},
				},
				Action: withRepo(userSetPassword),
			},
			{
				Name:      "roles",
				Usage:     "Change the staff, superuser and active bits of a user",
				ArgsUsage: "USERNAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "staff", Usage: "Staff members may moderate users"},
					&cli.BoolFlag{Name: "superuser", Usage: "Superusers have every permission"},
					&cli.BoolFlag{Name: "active", Usage: "Inactive users cannot sign in"},
				},
				Action: withRepo(userRoles),
			},
			{
				Name:      "bans",
				Usage:     "List the bans of a user",
				ArgsUsage: "USERNAME",
				Action:    withRepo(userBans),
			},
		},
	}
}

func lookupUser(ctx context.Context, repo *repository.Repository, username string) (*models.User, error) {
	user, err := repo.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q not found", username)
	}
	return user, err
}

func userSetPassword(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error {
	a, err := args(cmd, 1)
	if err != nil {
		return err
	}
	user, err := lookupUser(ctx, repo, a[0])
	if err != nil {
		return err
	}
	if err := auth.NewService(repo).SetPassword(ctx, user, cmd.String("password")); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.Root().Writer, "Password set for %s\n", user.Username)
	return nil
}

// userRoles only changes the bits that were passed.
func userRoles(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error {
	a, err := args(cmd, 1)
	if err != nil {
		return err
	}
	user, err := lookupUser(ctx, repo, a[0])
	if err != nil {
		return err
	}

	staff, superuser := user.IsStaff, user.IsSuperuser
	if cmd.IsSet("staff") {
		staff = cmd.Bool("staff")
	}
	if cmd.IsSet("superuser") {
		superuser = cmd.Bool("superuser")
	}

	err = repo.InTx(ctx, func(tx *repository.Repository) error {
		if err := tx.SetUserRoles(ctx, user.ID, staff, superuser); err != nil {
			return err
		}
		if cmd.IsSet("active") {
			return tx.SetUserActive(ctx, user.ID, cmd.Bool("active"))
		}
		return nil
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.Root().Writer, "%s: staff=%t superuser=%t\n", user.Username, staff, superuser)
	return nil
}

func userBans(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error {
	a, err := args(cmd, 1)
	if err != nil {
		return err
	}
	user, err := lookupUser(ctx, repo, a[0])
	if err != nil {
		return err
	}
	bans, err := repo.ListBans(ctx, user.ID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tBY\tACTIVE\tREASON")
	for _, b := range bans {
		by := fmt.Sprint(b.ByID)
		if mod, err := repo.GetUserByID(ctx, b.ByID); err == nil {
			by = mod.Username
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", b.CreatedAt.Format("2006-01-02"), by, b.IsActive, b.Reason)
	}
	return w.Flush()
}

func emailCommand() *cli.Command {
	return &cli.Command{
		Name:  "email",
		Usage: "Email address maintenance",
		Commands: []*cli.Command{
			{
				Name:  "purge-confirmations",
				Usage: "Delete expired email confirmation tokens",
				Action: withRepo(func(ctx context.Context, cmd *cli.Command, repo *repository.Repository) error {
					if err := repo.DeleteExpiredEmailConfirmations(ctx); err != nil {
						return err
					}
					_, _ = fmt.Fprintln(cmd.Root().Writer, "Expired confirmations deleted")
					return nil
				}),
			},
		},
	}
}
