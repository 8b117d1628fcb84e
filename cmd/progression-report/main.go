// Command progression-report prints the progression of every candidate as a table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/logging"
	"github.com/example/autoecole-scheduler/internal/persistence/sqlstore"
	"github.com/example/autoecole-scheduler/internal/persistence/sqlstore/migration"
	"github.com/example/autoecole-scheduler/internal/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	driver       string
	dsn          string
	theoryWeight float64
	category     string
}

func parseOptions(args []string) (options, error) {
	// A missing .env is fine; flags and the process environment still apply.
	_ = godotenv.Load()

	fs := flag.NewFlagSet("progression-report", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts := options{}
	fs.StringVar(&opts.driver, "driver", envOr("AUTOECOLE_DB_DRIVER", string(migration.DialectSQLite)), "database driver (sqlite or postgres)")
	fs.StringVar(&opts.dsn, "dsn", envOr("AUTOECOLE_DB_DSN", "data/autoecole.db"), "database path or connection string")
	fs.Float64Var(&opts.theoryWeight, "theory-weight", 0.5, "weight of the theory track in the overall ratio")
	fs.StringVar(&opts.category, "category", "", "only list candidates targeting this permit category")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.theoryWeight < 0 || opts.theoryWeight > 1 {
		return options{}, fmt.Errorf("theory-weight must be between 0 and 1, got %v", opts.theoryWeight)
	}
	opts.category = string(scheduler.NormalizeCategory(opts.category))
	return opts, nil
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseOptions(args)
	if err != nil {
		return err
	}
	dialect, err := migration.ParseDialect(opts.driver)
	if err != nil {
		return err
	}
	dbConfig := migration.DefaultSQLiteConfig(opts.dsn)
	if dialect == migration.DialectPostgres {
		dbConfig = migration.DefaultPostgresConfig(opts.dsn)
	}

	logger := logging.Discard()
	store, err := sqlstore.Open(ctx, dbConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	services := application.NewServices(application.Stores{
		Sessions:  store.Sessions,
		Presence:  store.Presence,
		Exams:     store.Exams,
		Directory: store.Directory,
	}, application.Options{
		Logger:  logger,
		Weights: application.ProgressionWeights{Theory: opts.theoryWeight, Practical: 1 - opts.theoryWeight},
	})

	rows, err := collectRows(ctx, services.Directory, services.Progression, scheduler.PermitCategory(opts.category))
	if err != nil {
		return err
	}
	renderReport(stdout, rows)
	return nil
}

type candidateLister interface {
	ListCandidates(ctx context.Context) ([]scheduler.Candidate, error)
}

type progressionReader interface {
	GetProgression(ctx context.Context, candidateID string) (application.ProgressionSnapshot, error)
}

type reportRow struct {
	Candidate scheduler.Candidate
	Snapshot  application.ProgressionSnapshot
}

func collectRows(ctx context.Context, candidates candidateLister, progression progressionReader, category scheduler.PermitCategory) ([]reportRow, error) {
	list, err := candidates.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	rows := make([]reportRow, 0, len(list))
	for _, candidate := range list {
		if category != "" && candidate.TargetCategory != category {
			continue
		}
		snapshot, err := progression.GetProgression(ctx, candidate.ID)
		if err != nil {
			if errors.Is(err, application.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to compute progression for %s: %w", candidate.ID, err)
		}
		rows = append(rows, reportRow{Candidate: candidate, Snapshot: snapshot})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Snapshot.OverallRatio != rows[j].Snapshot.OverallRatio {
			return rows[i].Snapshot.OverallRatio > rows[j].Snapshot.OverallRatio
		}
		return rows[i].Candidate.FullName() < rows[j].Candidate.FullName()
	})
	return rows, nil
}

func renderReport(w io.Writer, rows []reportRow) {
	heading := color.New(color.FgCyan, color.Bold)
	heading.Fprintf(w, "Progression des candidats (%d)\n", len(rows))
	if len(rows) == 0 {
		color.New(color.FgYellow).Fprintln(w, "Aucun candidat.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Candidat", "Permis", "Code", "Conduite", "Examen code", "Examen conduite", "Global"})
	for _, row := range rows {
		s := row.Snapshot
		table.Append([]string{
			row.Candidate.FullName(),
			string(row.Candidate.TargetCategory),
			formatTrack(s.Theory),
			formatTrack(s.Practical),
			formatExam(s.Exams[scheduler.ExamTheory]),
			formatExam(s.Exams[scheduler.ExamPractical]),
			formatRatio(s.OverallRatio),
		})
	}
	table.Render()
}

func formatTrack(track application.TrackProgress) string {
	return fmt.Sprintf("%d/%d", track.Completed, track.Planned)
}

func formatExam(stats application.ExamStats) string {
	switch {
	case stats.Passed:
		return color.New(color.FgGreen).Sprint("réussi")
	case stats.Pending > 0:
		return color.New(color.FgYellow).Sprint("en attente")
	case stats.Attempts > 0:
		return color.New(color.FgRed).Sprintf("échec (%d)", stats.Attempts)
	default:
		return "-"
	}
}

func formatRatio(ratio float64) string {
	text := fmt.Sprintf("%.0f%%", ratio*100)
	if ratio >= 1 {
		return color.New(color.FgGreen).Sprint(text)
	}
	return text
}
