// Command comprl-users manages user accounts on the server database.
//
//	comprl-users -config server.toml add -username alice -password secret
//	comprl-users -config server.toml list
//	comprl-users -config server.toml reset-rating -username alice
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/comprl/comprl/internal/config"
	"github.com/comprl/comprl/internal/database"
	"github.com/comprl/comprl/internal/models"
)

func main() {
	log.SetFlags(0)

	// Pick up COMPRL_CONFIG from a .env file if there is one.
	godotenv.Load()

	configPath := flag.String("config", os.Getenv("COMPRL_CONFIG"), "path to the server config file (TOML)")
	flag.Usage = usage
	flag.Parse()

	if *configPath == "" {
		log.Fatal("No config file: pass -config or set COMPRL_CONFIG")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DatabasePath == "" {
		log.Fatal("Config is missing database_path")
	}

	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "add":
		runAdd(db, args[1:])
	case "list":
		runList(db)
	case "reset-rating":
		runResetRating(db, args[1:])
	default:
		log.Printf("Unknown command %q", args[0])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: comprl-users -config FILE <command> [options]

Commands:
  add           create a user and print its access token
                  -username NAME  (required)
                  -password PASS  (required)
                  -role ROLE      user, bot or admin (default user)
  list          print all users ordered by score
  reset-rating  reset a user's rating to the defaults
                  -username NAME  (required)
`)
	flag.PrintDefaults()
}

func runAdd(db *sqlx.DB, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	username := fs.String("username", "", "account name")
	password := fs.String("password", "", "password")
	role := fs.String("role", string(models.RoleUser), "account role: user, bot or admin")
	fs.Parse(args)

	if *username == "" || *password == "" {
		log.Fatal("add: -username and -password are required")
	}
	switch models.UserRole(*role) {
	case models.RoleUser, models.RoleBot, models.RoleAdmin:
	default:
		log.Fatalf("add: invalid role %q", *role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	token := models.NewToken()

	users := database.NewUserStore(db)
	id, err := users.Add(*username, hash, token, models.UserRole(*role))
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("Created user %s (id=%d, role=%s)\n", *username, id, *role)
	fmt.Printf("Access token: %s\n", token)
}

func runList(db *sqlx.DB) {
	users := database.NewUserStore(db)
	ranked, err := users.Ranked()
	if err != nil {
		log.Fatalf("Failed to list users: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tUSERNAME\tROLE\tMU\tSIGMA\tSCORE")
	for i, u := range ranked {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.3f\t%.3f\t%.3f\n",
			i+1, u.Username, u.Role, u.Mu, u.Sigma, u.Score())
	}
	w.Flush()
}

func runResetRating(db *sqlx.DB, args []string) {
	fs := flag.NewFlagSet("reset-rating", flag.ExitOnError)
	username := fs.String("username", "", "account name")
	fs.Parse(args)

	if *username == "" {
		log.Fatal("reset-rating: -username is required")
	}

	users := database.NewUserStore(db)
	if err := users.ResetRating(*username); err != nil {
		log.Fatalf("Failed to reset rating: %v", err)
	}
	fmt.Printf("Reset rating of %s\n", *username)
}
