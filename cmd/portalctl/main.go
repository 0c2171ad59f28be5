// Command portalctl operates a portal backend from the shell: schema
// migration, admin provisioning, login and inspection of the state store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"schoolportal/internal/config"
	"schoolportal/internal/portal"
	"schoolportal/internal/state"
	"schoolportal/internal/store"
)

// env is what every command works against.
type env struct {
	cfg   config.App
	res   *store.Resources
	svc   *portal.Service
	store *state.Store
}

func open(ctx context.Context, opts ...state.Option) (*env, error) {
	cfg := config.Load()
	res, err := store.Open(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	svc := portal.NewService(res.Backend, portal.Options{
		AdminUsername: cfg.AdminUsername,
		AdminEmail:    cfg.AdminEmail,
		Location:      cfg.EventTimezone,
	})
	opts = append([]state.Option{state.WithPersister(res.Persister)}, opts...)
	return &env{cfg: cfg, res: res, svc: svc, store: state.New(opts...)}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Operate the school portal backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd(), createAdminCmd(), loginCmd(), logoutCmd(), listCmd(), watchCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		log.Fatalf("portalctl: %v", err)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the portal schema on the postgres backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.res.Close()
			if e.res.Postgres == nil {
				return errors.Errorf("migrate needs BACKEND=postgres, got %q", e.cfg.Backend)
			}
			if err := e.res.Postgres.Migrate(cmd.Context()); err != nil {
				return errors.Wrap(err, "migrate")
			}
			log.Println("schema is up to date")
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var name, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Provision the admin login identity and profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.res.Close()
			u, err := e.svc.ProvisionAdmin(cmd.Context(), name, password)
			if err != nil {
				return err
			}
			return printJSON(u)
		},
	}
	cmd.Flags().StringVar(&name, "name", "Principal", "display name")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.res.Close()
			u, err := e.svc.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			e.store.Dispatch(cmd.Context(), state.Login{User: u})
			return printJSON(u)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username, roll number or admin alias")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the persisted user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.res.Close()
			if err := e.svc.Logout(cmd.Context()); err != nil {
				return err
			}
			e.store.Dispatch(cmd.Context(), state.Logout{})
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "list [collection]",
		Short:     "Load every collection and print one, or the whole state",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"students", "teachers", "announcements", "events", "routes", "exams", "results"},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.res.Close()
			if _, err := e.store.Restore(cmd.Context()); err != nil {
				log.Printf("restore user: %v", err)
			}
			if err := e.store.Init(cmd.Context(), e.svc); err != nil {
				log.Printf("initial load incomplete: %v", err)
			}
			s := e.store.State()
			if len(args) == 0 {
				return printJSON(s)
			}
			collections := map[string]any{
				"students":      s.Students,
				"teachers":      s.Teachers,
				"announcements": s.Announcements,
				"events":        s.Events,
				"routes":        s.TransportRoutes,
				"exams":         s.Exams,
				"results":       s.Results,
			}
			v, ok := collections[args[0]]
			if !ok {
				return fmt.Errorf("unknown collection %q", args[0])
			}
			return printJSON(v)
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Load the store and log every action until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := open(ctx, state.WithLogger(log.New(os.Stderr, "store: ", log.LstdFlags)))
			if err != nil {
				return err
			}
			defer e.res.Close()

			events, err := e.svc.AuthEvents(ctx)
			if err != nil {
				return err
			}
			changes := e.store.Subscribe(ctx)
			go func() {
				for ch := range changes {
					user := "-"
					if ch.State.User != nil {
						user = ch.State.User.Username
					}
					log.Printf("%s ready=%v user=%s", ch.Action.Type(), ch.State.AppReady, user)
				}
			}()

			if _, err := e.store.Restore(ctx); err != nil {
				log.Printf("restore user: %v", err)
			}
			if err := e.store.Init(ctx, e.svc); err != nil {
				log.Printf("initial load incomplete: %v", err)
			}
			err = e.store.WatchAuth(ctx, events, e.svc)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
