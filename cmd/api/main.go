package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"trafficsense/adapters/postgres"
	"trafficsense/api"
)

func main() {
	_ = godotenv.Load()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := postgres.Migrate(db); err != nil {
		log.Fatal("Failed to migrate:", err)
	}

	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}

	app := api.NewApp(api.Config{Port: port}, postgres.NewRunRepository(db))

	log.Printf("Starting trafficsense API on http://localhost:%s", port)
	log.Fatal(app.Start())
}
