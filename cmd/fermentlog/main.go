package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/solvetheriddle/fermentlog/internal/api"
	"github.com/solvetheriddle/fermentlog/internal/auth"
	"github.com/solvetheriddle/fermentlog/internal/db"
	"github.com/solvetheriddle/fermentlog/internal/metrics"
	"github.com/solvetheriddle/fermentlog/internal/model"
	"github.com/solvetheriddle/fermentlog/internal/store"
	"github.com/solvetheriddle/fermentlog/internal/watch"
	"github.com/solvetheriddle/fermentlog/internal/web"
)

// pruneInterval is how often expired revoked tokens are removed.
const pruneInterval = time.Hour

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	level  slog.Leveler
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.level.Level()
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		level:  lr.level,
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		level:  lr.level,
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath, levelName string) (func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		level:  level,
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

// env returns the FERMENTLOG_<name> environment variable, or def when unset.
func env(name, def string) string {
	if v, ok := os.LookupEnv("FERMENTLOG_" + name); ok {
		return v
	}
	return def
}

func envBool(name string, def bool) bool {
	v, ok := os.LookupEnv("FERMENTLOG_" + name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func main() {
	fs := flag.NewFlagSet("fermentlog", flag.ContinueOnError)

	var dbPath string
	fs.StringVar(&dbPath, "db", env("DB", "fermentlog.sqlite3"), "")
	fs.StringVar(&dbPath, "d", env("DB", "fermentlog.sqlite3"), "")

	var addr string
	fs.StringVar(&addr, "addr", env("ADDR", ":8080"), "")
	fs.StringVar(&addr, "a", env("ADDR", ":8080"), "")

	var adminEmail string
	fs.StringVar(&adminEmail, "admin", env("ADMIN", "admin@localhost"), "")
	fs.StringVar(&adminEmail, "u", env("ADMIN", "admin@localhost"), "")

	var logPath string
	fs.StringVar(&logPath, "log", env("LOG", ""), "")
	fs.StringVar(&logPath, "l", env("LOG", ""), "")

	var logLevel string
	fs.StringVar(&logLevel, "log-level", env("LOG_LEVEL", "info"), "")

	var baseURL string
	fs.StringVar(&baseURL, "base-url", env("BASE_URL", "http://localhost:8080"), "")

	var googleClientID, googleClientSecret string
	fs.StringVar(&googleClientID, "google-client-id", env("GOOGLE_CLIENT_ID", ""), "")
	fs.StringVar(&googleClientSecret, "google-client-secret", env("GOOGLE_CLIENT_SECRET", ""), "")

	var secureCookies bool
	fs.BoolVar(&secureCookies, "secure-cookies", envBool("SECURE_COOKIES", false), "")

	var loginRate string
	fs.StringVar(&loginRate, "login-rate", env("LOGIN_RATE", "10-M"), "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: fermentlog [flags]

Flags:
  -d, -db <path>                 SQLite database path (default: fermentlog.sqlite3)
  -a, -addr <host:port>          listen address (default: :8080)
  -u, -admin <email>             admin email on first run (default: admin@localhost)
  -l, -log <path>                log file path (default: no file, stdout/stderr only)
      -log-level <level>         debug, info, warn or error (default: info)
      -base-url <url>            public URL used for sign-in callbacks (default: http://localhost:8080)
      -google-client-id <id>     Google OAuth client ID (enables "Sign in with Google")
      -google-client-secret <s>  Google OAuth client secret
      -secure-cookies            mark cookies Secure (serve over HTTPS)
      -login-rate <rate>         sign-in attempts per client, e.g. 10-M (default: 10-M)
  -h, -help                      show this help and exit

Every flag can also be set with FERMENTLOG_<NAME>, e.g. FERMENTLOG_DB or
FERMENTLOG_GOOGLE_CLIENT_ID.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	closeLog, err := setupLogger(logPath, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		database, password, err := initDatabase(dbPath, adminEmail)
		if err != nil {
			slog.Error("failed to initialize database", "error", err)
			os.Exit(1)
		}
		database.Close()

		printInitResult(dbPath, adminEmail, password)
		fmt.Println()
	}

	database, err := db.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	slog.Info("database ready", "path", dbPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jwtSecret, err := store.GetSecret(ctx, database, store.SettingJWTSecret)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		os.Exit(1)
	}
	sessionKey, err := store.GetSecret(ctx, database, store.SettingSessionKey)
	if err != nil {
		slog.Error("failed to get session key", "error", err)
		os.Exit(1)
	}

	oauth := auth.NewOAuth(auth.OAuthConfig{
		BaseURL:            baseURL,
		SessionKey:         sessionKey,
		GoogleClientID:     googleClientID,
		GoogleClientSecret: googleClientSecret,
		SecureCookies:      secureCookies,
	})
	if oauth.Enabled() {
		slog.Info("delegated sign-in enabled", "providers", oauth.Providers())
	}

	loginLimit, err := api.RateLimit(loginRate)
	if err != nil {
		slog.Error("invalid login rate", "rate", loginRate, "error", err)
		os.Exit(1)
	}

	repo := watch.NewRepository(database)

	apiRouter := api.NewRouter(repo, jwtSecret, loginLimit)
	webRouter, err := web.NewRouter(web.Config{
		Repo:          repo,
		JWTSecret:     jwtSecret,
		OAuth:         oauth,
		SecureCookies: secureCookies,
		LoginLimit:    loginLimit,
	})
	if err != nil {
		slog.Error("failed to set up web router", "error", err)
		os.Exit(1)
	}

	// Combine: API routes take priority, web routes handle the rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("/", webRouter)

	handler := api.LoggingMiddleware(metrics.Middleware(mux))

	// Request contexts derive from ctx, so open event streams end on shutdown.
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go pruneTokens(ctx, database)

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing database")
}

// pruneTokens periodically removes revoked tokens that have expired anyway.
func pruneTokens(ctx context.Context, database *sql.DB) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.PruneRevokedTokens(ctx, database, now)
			if err != nil {
				slog.Error("failed to prune revoked tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("pruned revoked tokens", "count", n)
			}
		}
	}
}

// initDatabase creates a new database, ensures the schema, and creates the admin user.
func initDatabase(path, adminEmail string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	fail := func(err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", err
	}

	if err := db.EnsureSchema(database); err != nil {
		return fail(fmt.Errorf("ensuring schema: %w", err))
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail(fmt.Errorf("generating password: %w", err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fail(fmt.Errorf("hashing password: %w", err))
	}

	if _, err := store.CreateUser(context.Background(), database, adminEmail, "Admin", string(hash), model.RoleAdmin); err != nil {
		return fail(fmt.Errorf("creating admin user: %w", err))
	}

	return database, password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, email, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after signing in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
