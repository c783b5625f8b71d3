// Package main seeds the shop catalog with a set of games and, on request,
// prints a development access token for exercising the checkout endpoints.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgconfig "github.com/gamehub/shop/pkg/config"
	"github.com/gamehub/shop/pkg/database"
	"github.com/gamehub/shop/services/shop/internal/auth"
	"github.com/gamehub/shop/services/shop/internal/config"
	"github.com/gamehub/shop/services/shop/migrations"
)

// productNamespace makes seeded product IDs stable across runs.
var productNamespace = uuid.MustParse("7d1b4a3e-5f0c-4c1e-9a55-2f7a3c9e6b10")

type seedProduct struct {
	Name        string
	Price       int64
	Category    string
	ReleaseYear int
	Photo       string
}

var games = []seedProduct{
	{"Hollow Knight", 1999, "Metroidvania", 2017, "hollow-knight.jpg"},
	{"Celeste", 2499, "Platformer", 2018, "celeste.jpg"},
	{"Stardew Valley", 1499, "Simulation", 2016, "stardew-valley.jpg"},
	{"Hades", 2999, "Roguelike", 2020, "hades.jpg"},
	{"Dead Cells", 2999, "Roguelike", 2018, "dead-cells.jpg"},
	{"The Witcher 3: Wild Hunt", 3999, "RPG", 2015, "witcher-3.jpg"},
	{"Disco Elysium", 4499, "RPG", 2019, "disco-elysium.jpg"},
	{"Elden Ring", 7999, "RPG", 2022, "elden-ring.jpg"},
	{"Portal 2", 1199, "Puzzle", 2011, "portal-2.jpg"},
	{"The Witness", 3999, "Puzzle", 2016, "the-witness.jpg"},
	{"Forza Horizon 5", 7999, "Racing", 2021, "forza-horizon-5.jpg"},
	{"Rocket League", 1999, "Racing", 2015, "rocket-league.jpg"},
	{"Civilization VI", 7999, "Strategy", 2016, "civilization-6.jpg"},
	{"Into the Breach", 1899, "Strategy", 2018, "into-the-breach.jpg"},
	{"Ori and the Will of the Wisps", 3499, "Metroidvania", 2020, "ori-wotw.jpg"},
	{"Outer Wilds", 3299, "Adventure", 2019, "outer-wilds.jpg"},
}

func main() {
	log.SetFlags(log.Ltime | log.Lmsgprefix)
	log.SetPrefix("[seed] ")

	tokenFor := flag.String("token-for", "", "print a development access token for this user id")
	email := flag.String("email", "dev@gamehub.local", "email claim of the printed token")
	flag.Parse()

	if err := pkgconfig.LoadDotenv(); err != nil {
		log.Fatalf("read .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	pgCfg := cfg.Postgres()

	log.Println("Connecting to shop database...")
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	log.Printf("Seeding %d games...", len(games))
	n, err := seedProducts(ctx, pool)
	if err != nil {
		log.Fatalf("seed products: %v", err)
	}
	log.Printf("Upserted %d products.", n)

	if *tokenFor != "" {
		token, err := auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour).GenerateAccessToken(*tokenFor, *email)
		if err != nil {
			log.Fatalf("generate token: %v", err)
		}
		log.Printf("Access token for %s (valid 24h):", *tokenFor)
		os.Stdout.WriteString(token + "\n")
	}
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	const q = `INSERT INTO products (id, name, price, category, release_year, photo)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			price = EXCLUDED.price,
			category = EXCLUDED.category,
			release_year = EXCLUDED.release_year,
			photo = EXCLUDED.photo,
			updated_at = NOW()`

	count := 0
	for _, g := range games {
		id := uuid.NewSHA1(productNamespace, []byte(g.Name))
		if _, err := pool.Exec(ctx, q, id, g.Name, g.Price, g.Category, g.ReleaseYear, g.Photo); err != nil {
			return count, err
		}
		log.Printf("  %s (%s) id=%s", g.Name, g.Category, id)
		count++
	}
	return count, nil
}
