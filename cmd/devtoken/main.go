// Command devtoken prints an access token for local testing against a
// recommender started with the same JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"movie-discovery-recommender/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	user := flag.String("user", "demo-user", "user id to put in the token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Error("JWT_SECRET is not set")
		os.Exit(1)
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "movie-discovery"
	}

	token, err := middleware.NewTokenIssuer(secret, issuer).Issue(*user, *ttl)
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
