package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"apgrhost/pkg/database"
)

var (
	databaseURL string
	timeout     time.Duration
)

// rootCmd manages the Postgres visitors schema
var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Manage the visitors table in Postgres",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if databaseURL == "" {
			databaseURL = os.Getenv("DATABASE_URL")
		}
		if databaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is not set")
		}
		return nil
	},
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Create the visitors table and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConn(cmd.Context(), func(ctx context.Context, conn *pgx.Conn) error {
			if err := database.EnsureSchema(ctx, conn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Visitors table created successfully")
			return nil
		})
	},
}

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the visitors table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConn(cmd.Context(), func(ctx context.Context, conn *pgx.Conn) error {
			if err := database.DropSchema(ctx, conn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Visitors table dropped successfully")
			return nil
		})
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored visitors",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConn(cmd.Context(), func(ctx context.Context, conn *pgx.Conn) error {
			var n int64
			if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM visitors`).Scan(&n); err != nil {
				return fmt.Errorf("failed to count visitors: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d visitors\n", n)
			return nil
		})
	},
}

func withConn(parent context.Context, fn func(ctx context.Context, conn *pgx.Conn) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(context.Background())

	return fn(ctx, conn)
}

func main() {
	// Load environment variables
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres connection string (defaults to $DATABASE_URL)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for the whole operation")
	rootCmd.AddCommand(upCmd, dropCmd, countCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
