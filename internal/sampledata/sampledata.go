// Package sampledata generates synthetic lead files for demos and load tests.
// Output depends only on the seed: row i is drawn from its own PCG stream, so
// the worker count never changes what is written.
package sampledata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/okian/leadflow/internal/domain/model"
	"github.com/okian/leadflow/pkg/logger"
)

// Generation defaults.
const (
	DefaultRows        = 100
	DefaultWorkers     = 4
	DefaultSeed        = 42
	DefaultInvalidRate = 0.05

	chunkSize = 256
)

// Header is the header row written by WriteCSV. The labels are deliberately
// varied so the file exercises column mapping.
var Header = []string{ //nolint:gochecknoglobals // fixed output layout
	"Full Name", "E-mail", "Organization", "Phone Number", "Lead Source",
	"Industry", "Annual Budget", "Purchase Timeline", "Engagement Level",
}

//nolint:gochecknoglobals // vocabulary
var (
	firstNames  = []string{"Ava", "Ben", "Chloe", "Dev", "Elena", "Farid", "Grace", "Hiro", "Ines", "Jonas", "Kemi", "Liam", "Maya", "Noah", "Olga", "Priya"}
	lastNames   = []string{"Anders", "Brooks", "Chen", "Diaz", "Eriksen", "Fischer", "Garcia", "Haddad", "Ito", "Jensen", "Kowalski", "Lopez", "Moreau", "Nakamura", "Okafor"}
	companies   = []string{"Acme Inc", "Globex", "Initech", "Umbrella Labs", "Hooli", "Stark Industries", "Wayne Enterprises", "Soylent Co", "Vandelay Imports", ""}
	domains     = []string{"example.com", "example.org", "mail.test", "corp.test"}
	sources     = []string{"website", "referral", "social", "email", "cold", "event", "trade show", ""}
	industries  = []string{"tech", "finance", "healthcare", "retail", "manufacturing", "education", ""}
	timelines   = []string{"immediate", "within 1 month", "within 3 months", "within 6 months", "no timeline", ""}
	engagements = []string{"very high", "high", "medium", "low", "very low", ""}
	budgets     = []int{0, 500, 2_500, 8_000, 15_000, 40_000, 75_000, 250_000}
)

// Config controls generation.
type Config struct {
	// Rows is the number of data rows.
	Rows int
	// Workers bounds the goroutines drawing rows.
	Workers int
	// Seed selects the data set.
	Seed uint64
	// InvalidRate is the share of rows missing the name or the email.
	InvalidRate float64
}

// DefaultConfig returns the default generation settings.
func DefaultConfig() Config {
	return Config{
		Rows:        DefaultRows,
		Workers:     DefaultWorkers,
		Seed:        DefaultSeed,
		InvalidRate: DefaultInvalidRate,
	}
}

// Stats describes a generated data set.
type Stats struct {
	Rows    int
	Invalid int
}

// Generate draws cfg.Rows candidate leads.
func Generate(ctx context.Context, cfg Config) ([]model.Attributes, Stats, error) {
	if cfg.Rows < 0 {
		return nil, Stats{}, fmt.Errorf("%w: rows must not be negative", ErrInvalidConfig)
	}
	if cfg.InvalidRate < 0 || cfg.InvalidRate > 1 {
		return nil, Stats{}, fmt.Errorf("%w: invalid rate must be within [0, 1]", ErrInvalidConfig)
	}
	workers := max(cfg.Workers, 1)

	logger.Get().Debug(ctx, "generating sample leads", logger.Int("rows", cfg.Rows), logger.Int("workers", workers))

	rows := make([]model.Attributes, cfg.Rows)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < cfg.Rows; start += chunkSize {
		end := min(start+chunkSize, cfg.Rows)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows[i] = row(cfg.Seed, i, cfg.InvalidRate)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, fmt.Errorf("generate sample leads: %w", err)
	}

	stats := Stats{Rows: len(rows)}
	for _, r := range rows {
		if r.Validate() != nil {
			stats.Invalid++
		}
	}
	return rows, stats, nil
}

// WriteCSV writes rows under Header.
func WriteCSV(w io.Writer, rows []model.Attributes) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		record := make([]string, 0, len(model.Fields))
		for _, f := range model.Fields {
			record = append(record, r.Get(f))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write generates a data set and writes it as CSV.
func Write(ctx context.Context, w io.Writer, cfg Config) (Stats, error) {
	rows, stats, err := Generate(ctx, cfg)
	if err != nil {
		return Stats{}, err
	}
	if err := WriteCSV(w, rows); err != nil {
		return Stats{}, fmt.Errorf("write sample leads: %w", err)
	}
	return stats, nil
}

func row(seed uint64, i int, invalidRate float64) model.Attributes {
	r := rand.New(rand.NewPCG(seed, uint64(i))) //nolint:gosec // synthetic data

	first, last := pick(r, firstNames), pick(r, lastNames)
	attrs := model.Attributes{
		Name:       first + " " + last,
		Email:      fmt.Sprintf("%s.%s%d@%s", strings.ToLower(first), strings.ToLower(last), i, pick(r, domains)),
		Company:    pick(r, companies),
		Phone:      phone(r),
		Source:     pick(r, sources),
		Industry:   pick(r, industries),
		Budget:     budget(r),
		Timeline:   pick(r, timelines),
		Engagement: pick(r, engagements),
	}
	if r.Float64() < invalidRate {
		if r.IntN(2) == 0 {
			attrs.Name = ""
		} else {
			attrs.Email = ""
		}
	}
	return attrs
}

func pick(r *rand.Rand, from []string) string {
	return from[r.IntN(len(from))]
}

func phone(r *rand.Rand) string {
	if r.IntN(5) == 0 {
		return ""
	}
	return fmt.Sprintf("+1 (%d) %03d-%04d", 200+r.IntN(800), r.IntN(1000), r.IntN(10000))
}

// budget renders a budget in one of the loose formats people type.
func budget(r *rand.Rand) string {
	b := budgets[r.IntN(len(budgets))]
	if b == 0 {
		return ""
	}
	switch r.IntN(3) {
	case 0:
		return "$" + strconv.Itoa(b)
	case 1:
		return strconv.Itoa(b)
	default:
		return "USD " + strconv.Itoa(b)
	}
}
