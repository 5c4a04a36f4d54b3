package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/tkfj/hass-dewpoint/internal/config"
	"github.com/tkfj/hass-dewpoint/internal/db"
	"github.com/tkfj/hass-dewpoint/internal/db/migrate"
	"github.com/tkfj/hass-dewpoint/internal/dewpoint"
	"github.com/tkfj/hass-dewpoint/internal/entry"
	"github.com/tkfj/hass-dewpoint/internal/modules/entries/repository"
)

const usage = `usage: %s <command> [args]
  migrate                         apply pending schema migrations
  entries                         print stored entries as JSON
  check <entries.yaml>            validate an entries file
  calc <temp> <humidity> [unit] [precision]
                                  compute a dew point (unit defaults to °C)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "migrate":
		err = withDB(runMigrate)
	case "entries":
		err = withDB(runEntries)
	case "check":
		err = runCheck(os.Args[2:])
	case "calc":
		err = runCalc(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func withDB(fn func(ctx context.Context, conn *sql.DB) error) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	conn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()
	return fn(context.Background(), conn)
}

func runMigrate(ctx context.Context, conn *sql.DB) error {
	n, err := migrate.Run(ctx, conn)
	if err != nil {
		return err
	}
	fmt.Printf("migrations applied: %d\n", n)
	return nil
}

func runEntries(ctx context.Context, conn *sql.DB) error {
	if _, err := migrate.Run(ctx, conn); err != nil {
		return err
	}
	entries, err := repository.NewRepository(conn).List(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func runCheck(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	f, err := entry.LoadFile(args[0])
	if err != nil {
		return err
	}
	for _, e := range f.Entries {
		fmt.Printf("%s\t%s\t%s\t%s\tprecision=%d\n", e.ID, e.Name, e.TemperatureEntity, e.HumidityEntity, *e.Precision)
	}
	fmt.Printf("%d entries ok\n", len(f.Entries))
	return nil
}

func runCalc(args []string) error {
	if len(args) < 2 || len(args) > 4 {
		return fmt.Errorf("expected <temp> <humidity> [unit] [precision]")
	}
	unit := dewpoint.UnitCelsius
	if len(args) >= 3 {
		unit = args[2]
	}
	precision := dewpoint.DefaultPrecision
	if len(args) == 4 {
		p, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("invalid precision %q", args[3])
		}
		precision = p
	}

	res := dewpoint.Calculate(
		&dewpoint.Reading{Value: args[0], Unit: unit},
		&dewpoint.Reading{Value: args[1]},
		precision,
	)
	if !res.Available {
		fmt.Println("unavailable")
		return nil
	}
	fmt.Printf("%s %s\n", res.Format(), dewpoint.UnitCelsius)
	return nil
}
