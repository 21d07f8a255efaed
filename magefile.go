//go:build mage

package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"

	"github.com/joho/godotenv"
)

const binary = "bin/dispatcher"

// Build compiles the dispatcher binary
func Build() error {
	return run("go", "build", "-o", binary, "./cmd/dispatcher")
}

// Test runs the unit tests
func Test() error {
	return run("go", "test", "-race", "./...")
}

// MigrateUp applies the scan ledger migrations
func MigrateUp() error {
	loadEnv()
	return run("go", "run", "./cmd/dispatcher", "migrate", "up")
}

// MigrateDown rolls back the last migration
func MigrateDown() error {
	loadEnv()
	return run("go", "run", "./cmd/dispatcher", "migrate", "down")
}

// MigrateCreate creates new migration files
func MigrateCreate(name string) error {
	if name == "" {
		return fmt.Errorf("migration name is required")
	}
	return run("migrate", "create", "-ext", "sql", "-dir", "internal/migrations/sql", "-seq", name)
}

// Scan runs one on-demand scan of the next ten minutes
func Scan() error {
	loadEnv()
	return run("go", "run", "./cmd/dispatcher", "scan", "-min", "0", "-max", "10")
}

// Helper functions

func loadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
