package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/erazemk/lofoph/internal/api"
	"github.com/erazemk/lofoph/internal/auth"
	"github.com/erazemk/lofoph/internal/config"
	"github.com/erazemk/lofoph/internal/db"
	"github.com/erazemk/lofoph/internal/model"
	"github.com/erazemk/lofoph/internal/store"
)

// purgeSchedule is how often expired revoked tokens are deleted.
const purgeSchedule = "@hourly"

var devapiFlags struct {
	addr         string
	dbPath       string
	seed         bool
	secureCookie bool
}

var devapiCmd = &cobra.Command{
	Use:   "devapi",
	Short: "Run a local SQLite-backed stand-in for the REST API",
	Args:  cobra.NoArgs,
	RunE:  runDevAPI,
}

func init() {
	rootCmd.AddCommand(devapiCmd)
	f := devapiCmd.Flags()
	f.StringVarP(&devapiFlags.addr, "addr", "a", config.DefaultDevAPIAddr, "listen address (overrides DEVAPI_ADDR)")
	f.StringVarP(&devapiFlags.dbPath, "db", "d", config.DefaultDevAPIDB, "SQLite database path (overrides DEVAPI_DB)")
	f.BoolVar(&devapiFlags.seed, "seed", false, "create a demo account and sample items in an empty database")
	f.BoolVar(&devapiFlags.secureCookie, "secure-cookie", false, "mark the session cookie Secure")
}

func runDevAPI(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadDevAPI()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = devapiFlags.addr
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = devapiFlags.dbPath
	}

	path, level, err := logSettings(cmd, cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return err
	}
	closeLog, err := setupLogger(path, level)
	if err != nil {
		return err
	}
	defer closeLog()

	database, err := db.OpenAndMigrate(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()
	slog.Info("database ready", "path", cfg.DBPath)

	ctx := context.Background()
	secret := cfg.JWTSecret
	if secret == "" {
		// Generated on first run and kept, so sessions survive restarts.
		if secret, err = store.GetJWTSecret(ctx, database); err != nil {
			return fmt.Errorf("loading JWT secret: %w", err)
		}
	}

	if devapiFlags.seed {
		if err := seedDemo(ctx, database); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	}

	purger := cron.New()
	if _, err := purger.AddFunc(purgeSchedule, func() { purgeTokens(database) }); err != nil {
		return fmt.Errorf("scheduling token purge: %w", err)
	}
	purger.Start()
	defer purger.Stop()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(database, secret, api.Options{SecureCookie: devapiFlags.secureCookie}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("dev API starting", "addr", cfg.Addr)
	return runHTTP(cmd.Context(), server)
}

func purgeTokens(database *sql.DB) {
	n, err := store.PurgeExpiredTokens(context.Background(), database, time.Now())
	if err != nil {
		slog.Error("failed to purge revoked tokens", "error", err)
		return
	}
	if n > 0 {
		slog.Info("purged expired revoked tokens", "count", n)
	}
}

// demoEmail is the account created by --seed.
const demoEmail = "demo@lofoph.local"

var demoItems = []model.Report{
	{Name: "Black leather wallet", ItemType: model.ItemTypeLost, Category: "Wallet", City: "Makati", Province: "Metro Manila", Location: "Ayala Avenue", Reward: 1000, ContactType: model.ContactPhone, Contact: "09170000001", Description: "Contains IDs and cards."},
	{Name: "Blue umbrella", ItemType: model.ItemTypeFound, Category: "Personal Accessories", City: "Quezon City", Province: "Metro Manila", Location: "MRT Cubao", ContactType: model.ContactEmail, Contact: demoEmail},
	{Name: "Golden retriever", ItemType: model.ItemTypeLost, Category: "Pets", City: "Cebu City", Province: "Cebu", Reward: 5000, ContactType: model.ContactFacebook, Contact: "fb.com/demo", Description: "Answers to Max. Red collar."},
	{Name: "Calculus textbook", ItemType: model.ItemTypeFound, Category: "Books", City: "Davao City", Province: "Davao del Sur", Location: "Library, 2nd floor", ContactType: model.ContactPhone, Contact: "09170000002"},
	{Name: "Wireless earbuds", ItemType: model.ItemTypeLost, Category: "Electronics", City: "Pasig", Province: "Metro Manila", Reward: 500, ContactType: model.ContactPhone, Contact: "09170000003"},
	{Name: "House keys", ItemType: model.ItemTypeFound, Category: "Household", City: "Makati", Province: "Metro Manila", Location: "Greenbelt 3", ContactType: model.ContactPhone, Contact: "09170000004"},
}

// seedDemo creates a demo account with sample items unless the account
// already exists.
func seedDemo(ctx context.Context, database *sql.DB) error {
	existing, err := store.GetUserByEmail(ctx, database, demoEmail)
	if err != nil {
		return err
	}
	if existing != nil {
		slog.Info("demo data already present", "email", demoEmail)
		return nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user, err := store.CreateUser(ctx, database, "Demo User", demoEmail, hash, model.RoleUser)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for i, r := range demoItems {
		r.User = user.ID
		r.Date = now.AddDate(0, 0, -i)
		if _, err := store.CreateItem(ctx, database, r, nil); err != nil {
			return err
		}
	}

	fmt.Println("Demo account created:")
	fmt.Printf("  Email:    %s\n", demoEmail)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	return nil
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
