// galactactl is a command-line client for the Galactavista property
// platform, built on the shared Go SDK. It keeps a logged-in session in a
// local credentials file, mirroring what the web and mobile apps do with
// their platform stores.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/galactavista/galactavista-go/client"
	"github.com/galactavista/galactavista-go/config"
	"github.com/galactavista/galactavista-go/internal/logger"
	"github.com/galactavista/galactavista-go/properties"
	"github.com/galactavista/galactavista-go/session"
	"github.com/galactavista/galactavista-go/types"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// Not an error; most environments configure via config.yml or env.
		log.Println("No .env file loaded:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	appLogger := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(appLogger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := newApp(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize", slog.Any("error", err))
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		appLogger.Error("Command failed", slog.String("command", os.Args[1]), slog.Any("error", err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: galactactl <command> [flags]

Commands:
  login        -email -password
  logout
  register     -email -password -first -last -role [-phone]
  profile      [-refresh]
  properties   [-query -min-price -max-price -type -bedrooms -city -state -status -page -page-size]
  property     -id
  create       -title -price -address -city -state -zip -type [-description]
  update       -id [-title -price -status]
  delete       -id
  mine         [-page -page-size]
  upload       -id file [file...]
  media        -id
  media-delete -id -file-id
  health`)
}

type app struct {
	cfg      config.Config
	logger   *slog.Logger
	client   *client.Client
	session  *session.Manager
	accessor *properties.Accessor
}

func newApp(ctx context.Context, cfg config.Config, appLogger *slog.Logger) (*app, error) {
	opts := []client.Option{
		client.WithLogger(appLogger),
	}
	if cfg.API.BaseURL != "" {
		opts = append(opts, client.WithBaseURL(cfg.API.BaseURL))
	}
	if cfg.API.Timeout > 0 {
		opts = append(opts, client.WithTimeout(cfg.API.Timeout))
	}
	if cfg.Metrics.Enabled {
		metrics, err := setupMetrics(cfg.Metrics.Port)
		if err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		opts = append(opts, client.WithMetrics(metrics))
	}
	apiClient := client.New(opts...)

	store, err := openCredentialStore(cfg)
	if err != nil {
		return nil, err
	}

	manager := session.NewManager(apiClient, store, appLogger)
	if err := manager.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   appLogger,
		client:   apiClient,
		session:  manager,
		accessor: properties.NewAccessor(apiClient, appLogger),
	}, nil
}

// setupMetrics wires the otel meter provider to a Prometheus exporter and
// serves /metrics on the configured port.
func setupMetrics(port string) (*client.Metrics, error) {
	exporter, err := otelprometheus.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			slog.Error("Metrics endpoint stopped", slog.Any("error", err))
		}
	}()

	return client.NewMetrics(mp.Meter("galactactl"))
}

func openCredentialStore(cfg config.Config) (session.Store, error) {
	path := cfg.Credentials.Path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate home directory: %w", err)
		}
		path = filepath.Join(home, ".galactavista", "credentials.json")
	}
	return session.NewFileStore(path)
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.cmdLogin(ctx, args)
	case "logout":
		a.session.Logout()
		fmt.Println("Logged out.")
		return nil
	case "register":
		return a.cmdRegister(ctx, args)
	case "profile":
		return a.cmdProfile(ctx, args)
	case "properties":
		return a.cmdProperties(ctx, args)
	case "property":
		return a.cmdProperty(ctx, args)
	case "create":
		return a.cmdCreate(ctx, args)
	case "update":
		return a.cmdUpdate(ctx, args)
	case "delete":
		return a.cmdDelete(ctx, args)
	case "mine":
		return a.cmdMine(ctx, args)
	case "upload":
		return a.cmdUpload(ctx, args)
	case "media":
		return a.cmdMedia(ctx, args)
	case "media-delete":
		return a.cmdMediaDelete(ctx, args)
	case "health":
		return a.cmdHealth(ctx)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)

	snap, err := a.session.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s %s (%s)\n", snap.User.FirstName, snap.User.LastName, snap.User.Email)
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	role := fs.String("role", string(types.RoleBuyer), "buyer|seller|agent|admin")
	phone := fs.String("phone", "", "phone number")
	fs.Parse(args)

	req := types.UserRegisterRequest{
		Email:     *email,
		Password:  *password,
		FirstName: *first,
		LastName:  *last,
		Role:      types.UserRole(*role),
	}
	if *phone != "" {
		req.Phone = phone
	}
	user, err := a.session.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Registered account %d (%s). Log in to continue.\n", user.ID, user.Email)
	return nil
}

func (a *app) cmdProfile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	refresh := fs.Bool("refresh", false, "re-fetch the profile from the server")
	fs.Parse(args)

	if *refresh {
		user, err := a.session.RefreshProfile(ctx)
		if err != nil {
			return err
		}
		return printJSON(user)
	}
	snap := a.session.Snapshot()
	if !snap.Authenticated() {
		return session.ErrNotAuthenticated
	}
	return printJSON(snap.User)
}

func (a *app) cmdProperties(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("properties", flag.ExitOnError)
	query := fs.String("query", "", "free text search")
	minPrice := fs.Float64("min-price", 0, "minimum price")
	maxPrice := fs.Float64("max-price", 0, "maximum price")
	propertyType := fs.String("type", "", "property type")
	bedrooms := fs.Int("bedrooms", 0, "minimum bedrooms")
	city := fs.String("city", "", "city")
	state := fs.String("state", "", "state")
	status := fs.String("status", "", "listing status")
	page := fs.Int("page", 0, "page number (1-based)")
	pageSize := fs.Int("page-size", 0, "page size")
	fs.Parse(args)

	filter := &types.PropertySearchRequest{}
	if *query != "" {
		filter.Query = query
	}
	if *minPrice > 0 {
		filter.MinPrice = minPrice
	}
	if *maxPrice > 0 {
		filter.MaxPrice = maxPrice
	}
	if *propertyType != "" {
		t := types.PropertyType(*propertyType)
		filter.PropertyType = &t
	}
	if *bedrooms > 0 {
		filter.Bedrooms = bedrooms
	}
	if *city != "" {
		filter.City = city
	}
	if *state != "" {
		filter.State = state
	}
	if *status != "" {
		s := types.PropertyStatus(*status)
		filter.Status = &s
	}
	if *page > 0 {
		filter.Page = page
	}
	if *pageSize > 0 {
		filter.PageSize = pageSize
	}

	if err := a.accessor.Fetch(ctx, filter); err != nil {
		return err
	}
	snap := a.accessor.Snapshot()
	if snap.Pagination != nil {
		fmt.Printf("Page %d/%d (%d total)\n", snap.Pagination.Page, snap.Pagination.TotalPages, snap.Pagination.Total)
	}
	return printJSON(snap.Items)
}

func (a *app) cmdProperty(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("property", flag.ExitOnError)
	id := fs.Int64("id", 0, "property id")
	fs.Parse(args)

	property, err := a.accessor.FetchOne(ctx, *id)
	if err != nil {
		return err
	}
	return printJSON(property)
}

func (a *app) cmdCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	title := fs.String("title", "", "listing title")
	description := fs.String("description", "", "listing description")
	price := fs.Float64("price", 0, "asking price")
	address := fs.String("address", "", "street address")
	city := fs.String("city", "", "city")
	state := fs.String("state", "", "state")
	zip := fs.String("zip", "", "zip code")
	propertyType := fs.String("type", string(types.PropertyTypeHouse), "property type")
	fs.Parse(args)

	req := types.PropertyCreateRequest{
		Title:        *title,
		Price:        *price,
		Address:      *address,
		City:         *city,
		State:        *state,
		ZipCode:      *zip,
		PropertyType: types.PropertyType(*propertyType),
	}
	if *description != "" {
		req.Description = description
	}
	property, err := a.accessor.Create(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Created property %d\n", property.ID)
	return printJSON(property)
}

func (a *app) cmdUpdate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	id := fs.Int64("id", 0, "property id")
	title := fs.String("title", "", "new title")
	price := fs.Float64("price", 0, "new price")
	status := fs.String("status", "", "new status")
	fs.Parse(args)

	req := types.PropertyUpdateRequest{}
	if *title != "" {
		req.Title = title
	}
	if *price > 0 {
		req.Price = price
	}
	if *status != "" {
		s := types.PropertyStatus(*status)
		req.Status = &s
	}
	property, err := a.accessor.Update(ctx, *id, req)
	if err != nil {
		return err
	}
	return printJSON(property)
}

func (a *app) cmdDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.Int64("id", 0, "property id")
	fs.Parse(args)

	if err := a.accessor.Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("Deleted property %d\n", *id)
	return nil
}

func (a *app) cmdMine(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mine", flag.ExitOnError)
	page := fs.Int("page", 0, "page number (1-based)")
	pageSize := fs.Int("page-size", 0, "page size")
	fs.Parse(args)

	req := &types.PaginationRequest{}
	if *page > 0 {
		req.Page = page
	}
	if *pageSize > 0 {
		req.PageSize = pageSize
	}
	result, err := a.accessor.FetchByAgent(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Page %d/%d (%d total)\n", result.Page, result.TotalPages, result.Total)
	return printJSON(result.Data)
}

func (a *app) cmdUpload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	id := fs.Int64("id", 0, "property id")
	fs.Parse(args)
	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("upload: at least one file required")
	}

	uploads := make([]client.Upload, 0, len(paths))
	files := make([]*os.File, 0, len(paths))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		files = append(files, f)
		uploads = append(uploads, client.Upload{
			FileName: filepath.Base(path),
			Size:     info.Size(),
			Content:  f,
		})
	}

	results, err := a.client.UploadFiles(ctx, *id, uploads)
	if err != nil {
		return err
	}
	for _, media := range results {
		fmt.Printf("Uploaded %s (%s) -> %s\n", media.FileName, client.FormatFileSize(media.FileSize), media.FileURL)
	}
	return nil
}

func (a *app) cmdMedia(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("media", flag.ExitOnError)
	id := fs.Int64("id", 0, "property id")
	fs.Parse(args)

	media, err := a.client.GetPropertyMedia(ctx, *id)
	if err != nil {
		return err
	}
	return printJSON(media)
}

func (a *app) cmdMediaDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("media-delete", flag.ExitOnError)
	id := fs.Int64("id", 0, "property id")
	fileID := fs.Int64("file-id", 0, "media file id")
	fs.Parse(args)

	if err := a.client.DeleteMediaFile(ctx, *id, *fileID); err != nil {
		return err
	}
	fmt.Printf("Deleted media file %d from property %d\n", *fileID, *id)
	return nil
}

func (a *app) cmdHealth(ctx context.Context) error {
	status, err := a.client.HealthCheck(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Backend status:", status.Status)
	return nil
}

func printJSON(v any) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(buf))
	return nil
}
