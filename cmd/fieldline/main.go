package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"fieldline/internal/config"
	"fieldline/internal/db"
	"fieldline/internal/domain"
	"fieldline/internal/engine"
	"fieldline/internal/migrate"
	"fieldline/internal/repo"
	"fieldline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "fieldline",
	Short: "Fieldline CLI",
	Long: `Fieldline schedules recurring field-service jobs and client bookings.
Tenants own contacts, services, and jobs. Services carry working hours and
booking rules; clients book open slots through a public service link, and
conflict detection keeps two jobs from claiming the same time.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FIELDLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("tenant", "", "tenant id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("tenant", rootCmd.PersistentFlags().Lookup("tenant"))
}

func registerCommands() {
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(contactCmd())
	rootCmd.AddCommand(serviceCmd())
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(availabilityCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tenant", Short: "Manage tenants"}
	cmd.AddCommand(tenantCreateCmd())
	cmd.AddCommand(tenantListCmd())
	return cmd
}

func tenantCreateCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTenant(ctx, id, name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "tenant id (generated when omitted)")
	cmd.Flags().StringVar(&name, "name", "", "tenant name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func tenantListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListTenants(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, t.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func contactCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "contact", Short: "Manage contacts"}
	cmd.AddCommand(contactCreateCmd())
	cmd.AddCommand(contactListCmd())
	return cmd
}

func contactCreateCmd() *cobra.Command {
	var name, email, phone string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requiredTenant()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateContact(ctx, tenantID, engine.ContactDetails{
					Name:  name,
					Email: email,
					Phone: phone,
				}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "contact name")
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().StringVar(&phone, "phone", "", "contact phone")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func contactListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requiredTenant()
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListContacts(ctx, tenantID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Phone"})
				for _, c := range items {
					phone := ""
					if c.Phone != nil {
						phone = *c.Phone
					}
					tw.AppendRow(table.Row{c.ID, c.Name, c.Email, phone})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "service", Short: "Manage bookable services"}
	cmd.AddCommand(serviceCreateCmd())
	cmd.AddCommand(serviceListCmd())
	cmd.AddCommand(serviceActiveCmd())
	return cmd
}

func serviceCreateCmd() *cobra.Command {
	var name string
	var duration, buffer, advance, capacity, tzOffset int
	var sameDay, confirm bool
	var days []int
	var hours string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create service",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requiredTenant()
			if err != nil {
				return err
			}
			opts, err := serviceOptions(tenantID, name, duration, buffer, advance, capacity, tzOffset, sameDay, confirm, days, hours)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateService(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "service name")
	cmd.Flags().IntVar(&duration, "duration", 60, "slot duration in minutes")
	cmd.Flags().IntVar(&buffer, "buffer", 0, "buffer between slots in minutes")
	cmd.Flags().IntVar(&advance, "advance-days", 0, "advance booking window in days (0 = default)")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "max bookings per slot (0 = 1)")
	cmd.Flags().IntVar(&tzOffset, "tz-offset", 0, "business timezone offset in hours from UTC")
	cmd.Flags().BoolVar(&sameDay, "same-day", false, "allow same-day booking")
	cmd.Flags().BoolVar(&confirm, "require-confirmation", false, "bookings start pending confirmation")
	cmd.Flags().IntSliceVar(&days, "days", []int{1, 2, 3, 4, 5}, "working weekdays, 0=Sunday..6=Saturday")
	cmd.Flags().StringVar(&hours, "hours", "09:00-17:00", "working hours as HH:mm-HH:mm")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func serviceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List services",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requiredTenant()
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListServices(ctx, tenantID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Duration", "Active", "Capacity"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.Name, fmt.Sprintf("%dm", s.DurationMinutes), s.Active, s.Capacity()})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func serviceActiveCmd() *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "set-active <service-id>",
		Short: "Enable or disable bookings for a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requiredTenant()
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.SetServiceActive(ctx, tenantID, args[0], active); err != nil {
					return err
				}
				s, err := r.GetService(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().BoolVar(&active, "active", true, "accept bookings")
	return cmd
}

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "job", Short: "Manage jobs"}
	cmd.AddCommand(jobCreateCmd())
	cmd.AddCommand(jobListCmd())
	cmd.AddCommand(jobStatusCmd())
	cmd.AddCommand(jobConfirmCmd())
	cmd.AddCommand(jobDeclineCmd())
	cmd.AddCommand(jobRescheduleCmd())
	cmd.AddCommand(jobArchiveCmd())
	return cmd
}

func jobCreateCmd() *cobra.Command {
	var title, contactID, serviceID, start, end string
	var frequency string
	var interval, count int
	var daysOfWeek []int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a job, optionally recurring",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requiredTenant()
			if err != nil {
				return err
			}
			opts := engine.ScheduleJobOptions{
				TenantID:  tenantID,
				ContactID: contactID,
				ServiceID: serviceID,
				Title:     title,
				ActorID:   viper.GetString("actor-id"),
			}
			if start != "" {
				t, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("--start must be RFC3339: %w", err)
				}
				opts.Start = &t
			}
			if end != "" {
				t, err := time.Parse(time.RFC3339, end)
				if err != nil {
					return fmt.Errorf("--end must be RFC3339: %w", err)
				}
				opts.End = &t
			}
			if frequency != "" {
				rec := &engine.RecurrenceOptions{
					Frequency:  frequency,
					Interval:   interval,
					DaysOfWeek: daysOfWeek,
				}
				if count > 0 {
					rec.Count = &count
				}
				opts.Recurrence = rec
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ScheduleJob(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "job title")
	cmd.Flags().StringVar(&contactID, "contact", "", "contact id")
	cmd.Flags().StringVar(&serviceID, "service", "", "service id")
	cmd.Flags().StringVar(&start, "start", "", "start time (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "end time (RFC3339)")
	cmd.Flags().StringVar(&frequency, "frequency", "", "recurrence frequency (daily, weekly, monthly)")
	cmd.Flags().IntVar(&interval, "interval", 1, "recurrence interval")
	cmd.Flags().IntVar(&count, "count", 0, "recurrence occurrence count")
	cmd.Flags().IntSliceVar(&daysOfWeek, "days-of-week", nil, "weekly recurrence days, 0=Sunday..6=Saturday")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func jobListCmd() *cobra.Command {
	var status string
	var includeArchived bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requiredTenant()
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListJobs(ctx, repo.JobFilters{
					TenantID:        tenantID,
					Status:          status,
					IncludeArchived: includeArchived,
					Limit:           limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Start", "End", "Status"})
				for _, j := range items {
					start, end := "-", "-"
					if j.StartTime != nil {
						start = *j.StartTime
					}
					if j.EndTime != nil {
						end = *j.EndTime
					}
					tw.AppendRow(table.Row{j.ID, j.Title, start, end, j.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().BoolVar(&includeArchived, "include-archived", false, "include archived jobs")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func jobStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <job-id>",
		Short: "Transition a job's lifecycle status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requiredTenant()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.SetJobStatus(ctx, tenantID, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func jobConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <job-id>",
		Short: "Confirm a pending booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requiredTenant()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.ConfirmJob(ctx, tenantID, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
}

func jobDeclineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decline <job-id>",
		Short: "Decline a pending booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requiredTenant()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.DeclineJob(ctx, tenantID, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
}

func jobRescheduleCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "reschedule <job-id>",
		Short: "Move a job to a new time range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requiredTenant()
			if err != nil {
				return err
			}
			s, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("--start must be RFC3339: %w", err)
			}
			en, err := time.Parse(time.RFC3339, end)
			if err != nil {
				return fmt.Errorf("--end must be RFC3339: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.RescheduleJob(ctx, tenantID, args[0], s, en, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "new start time (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "new end time (RFC3339)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func jobArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <job-id>",
		Short: "Archive a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requiredTenant()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.ArchiveJob(ctx, tenantID, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
}

func availabilityCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "availability <service-id>",
		Short: "Show open slots for a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fromT, toT *time.Time
			if from != "" {
				t, err := time.Parse(time.RFC3339, from)
				if err != nil {
					return fmt.Errorf("--from must be RFC3339: %w", err)
				}
				fromT = &t
			}
			if to != "" {
				t, err := time.Parse(time.RFC3339, to)
				if err != nil {
					return fmt.Errorf("--to must be RFC3339: %w", err)
				}
				toT = &t
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				days, err := e.Availability(ctx, args[0], fromT, toT)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(days)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Date", "Start", "End"})
				for _, d := range days {
					for _, s := range d.Slots {
						tw.AppendRow(table.Row{d.Date, s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339)})
					}
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "range start (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "range end (RFC3339)")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requiredTenant()
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, tenantID, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			if secret := os.Getenv("FIELDLINE_JWT_SECRET"); secret != "" {
				cfg.Auth.JWTSecret = secret
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("a JWT secret is required: set FIELDLINE_JWT_SECRET or auth.jwt_secret in fieldline.yml")
			}
			log, err := newLogger(cfg.Logging.Level)
			if err != nil {
				return err
			}
			defer log.Sync()

			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			e := engine.New(conn, cfg, log)
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: cfg.Server.BasePath,
				Auth:     server.AuthConfig{JWTSecret: cfg.Auth.JWTSecret},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info("serving fieldline api",
				zap.String("addr", cfg.Server.Addr),
				zap.String("base_path", cfg.Server.BasePath),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			v, err := migrate.Version(conn)
			if err != nil {
				return err
			}
			fmt.Printf("schema at version %d\n", v)
			return nil
		},
	}
}

// --- helpers ---

func requiredTenant() (string, error) {
	tenantID := strings.TrimSpace(viper.GetString("tenant"))
	if tenantID == "" {
		return "", fmt.Errorf("tenant not specified; use --tenant or set FIELDLINE_TENANT")
	}
	return tenantID, nil
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	e := engine.New(conn, cfg, log)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serviceOptions(tenantID, name string, duration, buffer, advance, capacity, tzOffset int, sameDay, confirm bool, days []int, hours string) (engine.ServiceOptions, error) {
	start, end, ok := strings.Cut(hours, "-")
	if !ok {
		return engine.ServiceOptions{}, fmt.Errorf("--hours must be HH:mm-HH:mm")
	}
	weekdays := make(map[int]domain.WorkingHours, len(days))
	for _, d := range days {
		weekdays[d] = domain.WorkingHours{Enabled: true, Start: start, End: end}
	}
	return engine.ServiceOptions{
		TenantID: tenantID,
		Name:     name,
		Duration: duration,
		ActorID:  viper.GetString("actor-id"),
		Availability: domain.AvailabilitySettings{
			Weekdays:           weekdays,
			BufferMinutes:      buffer,
			AdvanceBookingDays: advance,
			SameDayBooking:     sameDay,
			TimezoneOffset:     tzOffset,
		},
		Booking: domain.BookingSettings{
			RequireConfirmation: confirm,
			MaxBookingsPerSlot:  capacity,
		},
	}, nil
}
