package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	clientapi "github.com/iudanet/fieldsync/internal/client/api"
	"github.com/iudanet/fieldsync/internal/client/auth"
	"github.com/iudanet/fieldsync/internal/client/data"
	"github.com/iudanet/fieldsync/internal/client/iocli"
	"github.com/iudanet/fieldsync/internal/client/storage/boltdb"
	clientsync "github.com/iudanet/fieldsync/internal/client/sync"
	"github.com/iudanet/fieldsync/internal/config"
	"github.com/iudanet/fieldsync/internal/models"
)

// VersionInfo данные сборки, задаются через ldflags
type VersionInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// setupAnnotation управляет подготовкой окружения перед командой
const (
	setupAnnotation = "fieldsync/setup"
	setupNone       = "none"   // ни конфигурации, ни базы
	setupConfig     = "config" // только конфигурация
)

type globalFlags struct {
	configPath string
	serverURL  string
	dbPath     string
	logLevel   string
}

// app собирается в PersistentPreRunE и живет до конца команды
type app struct {
	cli   *Cli
	cfg   *config.ClientConfig
	store *boltdb.Storage
}

// Execute выполняет команду клиента; база закрывается и после ошибки команды
func Execute(ctx context.Context, info VersionInfo, io iocli.IO, args []string) error {
	var a app
	root := newRootCommand(info, io, &a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

func newRootCommand(info VersionInfo, io iocli.IO, a *app) *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "fieldsync",
		Short: "Fieldsync offline-first sync client",
		Long: `Fieldsync keeps a local copy of project data on a field device and
synchronizes it with the server: local edits are queued in an outbox and pushed
in batches, remote changes are pulled from the server change feed.

Configuration is read from --config (YAML) and FIELDSYNC_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			mode := setupMode(cmd)
			if mode == setupNone {
				return nil
			}
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			a.cfg = cfg
			if mode == setupConfig {
				return nil
			}
			return a.open(cmd.Context(), io)
		},
	}

	root.SetOut(io)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to YAML config file")
	pf.StringVar(&flags.serverURL, "server", "", "server URL (overrides server_url)")
	pf.StringVar(&flags.dbPath, "db", "", "path to local database (overrides database_path)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug|info|warn|error")

	root.AddCommand(
		newEnrollCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newStatusCommand(a),
		newPutCommand(a),
		newGetCommand(a),
		newDeleteCommand(a),
		newListCommand(a),
		newOutboxCommand(a),
		newAttachCommand(a),
		newSyncCommand(a),
		newRunCommand(a),
		newConflictsCommand(a),
		newConfigCommand(a, io),
		newVersionCommand(info, io),
	)
	return root
}

func setupMode(cmd *cobra.Command) string {
	switch cmd.Name() {
	case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return setupNone
	}
	if cmd.HasParent() && cmd.Parent().Name() == "completion" {
		return setupNone
	}
	return cmd.Annotations[setupAnnotation]
}

// loadConfig читает конфигурацию и применяет глобальные флаги поверх нее
func loadConfig(cmd *cobra.Command, flags globalFlags) (*config.ClientConfig, error) {
	cfg, err := config.LoadClient(flags.configPath)
	if err != nil {
		return nil, err
	}
	pf := cmd.Flags()
	if pf.Changed("server") {
		cfg.ServerURL = flags.serverURL
	}
	if pf.Changed("db") {
		cfg.DatabasePath = flags.dbPath
	}
	if pf.Changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open открывает локальную базу и связывает сервисы клиента
func (a *app) open(ctx context.Context, io iocli.IO) error {
	logger := config.NewLogger(a.cfg.Log, os.Stderr)

	store, err := boltdb.New(ctx, a.cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.store = store

	apiClient := clientapi.NewClient(a.cfg.ServerURL, a.cfg.RequestTimeout, a.cfg.Compress)
	authService := auth.NewService(apiClient, store, logger)

	// id устройства берется из регистрации, конфигурация нужна только до нее
	deviceID := a.cfg.DeviceID
	if authData, err := authService.Current(ctx); err == nil {
		deviceID = authData.DeviceID
	} else if !errors.Is(err, auth.ErrNotEnrolled) {
		return err
	}

	engine := clientsync.NewEngine(apiClient, authService, store, clientsync.Config{
		DeviceID:         deviceID,
		BatchSize:        a.cfg.BatchSize,
		PullPageSize:     a.cfg.PullPageSize,
		MediaConcurrency: a.cfg.MediaConcurrency,
		PhaseTimeout:     a.cfg.PhaseTimeout,
	}, logger)

	a.cli = New(io, a.cfg, logger, authService, data.NewService(store), engine, apiClient, store)
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func newEnrollCommand(a *app) *cobra.Command {
	var opts EnrollOptions
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Register this device with the server",
		Long: `Register this device with the server using the enrollment key of its role.
The enrollment key and the device secret are prompted for when not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cli.RunEnroll(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.DeviceID, "device-id", "", "device id (defaults to device_id from config)")
	cmd.Flags().StringVar(&opts.Role, "role", string(models.RoleDevice), "device role: device|operator")
	cmd.Flags().StringVar(&opts.EnrollmentKey, "enrollment-key", "", "enrollment key for the role")
	cmd.Flags().StringVar(&opts.SecretFile, "secret-file", "", "read the device secret from a file")
	cmd.Flags().BoolVar(&opts.GenerateSecret, "generate-secret", false, "generate a random device secret")
	return cmd
}

func newLoginCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Obtain a fresh access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cli.RunLogin(cmd.Context())
		},
	}
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget device credentials (local data is kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cli.RunLogout(cmd.Context())
		},
	}
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show enrollment, outbox and conflict status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cli.RunStatus(cmd.Context())
		},
	}
}

func newPutCommand(a *app) *cobra.Command {
	var opts PutOptions
	cmd := &cobra.Command{
		Use:   "put <type> <id> [payload|-]",
		Short: "Create or update an entity locally",
		Long: `Create or update an entity locally and queue the change for push.
The payload is a JSON object given as an argument, read from --file, or from
stdin when the argument is "-".`,
		Example: `  fieldsync put zone z-17 '{"name":"Boiler room","project_id":"p-1"}'
  fieldsync put measurement m-3 --file m-3.json`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 3 {
				opts.Payload = args[2]
			}
			opts.Stdin = cmd.InOrStdin()
			return a.cli.RunPut(cmd.Context(), args[0], args[1], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the payload from a file")
	return cmd
}

func newGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Show the local copy of an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cli.RunGet(cmd.Context(), args[0], args[1])
		},
	}
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete an entity locally and queue the deletion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cli.RunDelete(cmd.Context(), args[0], args[1])
		},
	}
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [type]",
		Short: "List local entities",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entityType string
			if len(args) == 1 {
				entityType = args[0]
			}
			return a.cli.RunList(cmd.Context(), entityType)
		},
	}
}

func newOutboxCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "outbox",
		Short: "Show local changes waiting for the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cli.RunOutbox(cmd.Context())
		},
	}
}

func newAttachCommand(a *app) *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "attach <photo-id> <file>",
		Short: "Queue a media file for upload to a photo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cli.RunAttach(cmd.Context(), args[0], args[1], contentType)
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "media type (detected from the file when empty)")
	return cmd
}

func newSyncCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one push, media and pull cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cli.RunSync(cmd.Context())
		},
	}
}

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Synchronize in the background until interrupted",
		Long: `Run sync cycles every sync_interval. With listen enabled the agent also
subscribes to server events and syncs as soon as another device changes data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cli.RunDaemon(cmd.Context())
		},
	}
}

func newConflictsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Inspect and resolve sync conflicts",
	}

	var listOpts ConflictListOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List conflicts",
		Long: `List conflicts this device received on push, or with --server the
conflicts known to the server. Operators see conflicts of every device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cli.RunConflicts(cmd.Context(), listOpts)
		},
	}
	list.Flags().BoolVar(&listOpts.Remote, "server", false, "list conflicts stored on the server")
	list.Flags().StringVar(&listOpts.Status, "status", "", "filter by status: unresolved|client_wins|server_wins|merged")
	list.Flags().StringVar(&listOpts.DeviceID, "device", "", "filter by device id (operators only)")
	list.Flags().IntVar(&listOpts.Limit, "limit", 0, "maximum number of conflicts")

	var resolveOpts ResolveOptions
	resolve := &cobra.Command{
		Use:   "resolve <conflict-id>",
		Short: "Resolve a conflict on the server (operators only)",
		Example: `  fieldsync conflicts resolve c-42 --strategy server_wins
  fieldsync conflicts resolve c-42 --strategy manual_merge --merged-file merged.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cli.RunResolve(cmd.Context(), args[0], resolveOpts)
		},
	}
	resolve.Flags().StringVar(&resolveOpts.Strategy, "strategy", "", "client_wins|server_wins|manual_merge")
	resolve.Flags().StringVar(&resolveOpts.Merged, "merged", "", "merged JSON payload for manual_merge")
	resolve.Flags().StringVar(&resolveOpts.MergedFile, "merged-file", "", "read the merged payload from a file")
	_ = resolve.MarkFlagRequired("strategy")

	dismiss := &cobra.Command{
		Use:   "dismiss <conflict-id>",
		Short: "Remove a conflict from the local list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cli.RunDismiss(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, resolve, dismiss)
	return cmd
}

func newConfigCommand(a *app, io iocli.IO) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect client configuration",
	}
	show := &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{setupAnnotation: setupConfig},
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := config.Render(a.cfg)
			if err != nil {
				return err
			}
			_, err = io.Write(out)
			return err
		},
	}
	cmd.AddCommand(show)
	return cmd
}

func newVersionCommand(info VersionInfo, io iocli.IO) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{setupAnnotation: setupNone},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &Cli{io: io}
			return c.render("version", versionTemplate, info)
		},
	}
}
