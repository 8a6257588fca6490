// Seed fills a Tally store with synthetic shop data for demos and manual testing.
//
// Usage:
//
//	go run ./cmd/seed -sqlite ./tally.db -clients 40 -days 120
//
// Clients get a mix of cash, credit and partly paid sales spread over the
// last -days days; some credit sales are later settled by payments.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/tally/internal/domain"
	"github.com/opensource-finance/tally/internal/repository"
	"github.com/schollz/progressbar/v3"
)

var (
	firstNames = []string{"Awa", "Moussa", "Fatou", "Ibrahima", "Aminata", "Cheikh", "Mariama", "Ousmane", "Khady", "Mamadou", "Adama", "Seynabou"}
	lastNames  = []string{"Diop", "Ndiaye", "Fall", "Sow", "Ba", "Diallo", "Faye", "Sarr", "Gueye", "Cissé"}
	products   = []struct {
		name  string
		price float64
	}{
		{"Riz 25kg", 12500},
		{"Huile 5L", 6000},
		{"Sucre 1kg", 700},
		{"Lait en poudre", 2500},
		{"Savon", 350},
		{"Thé vert", 500},
		{"Oignons 5kg", 3000},
		{"Tissu wax", 8000},
	}
)

// dataset is one generated batch of records.
type dataset struct {
	clients  []*domain.Client
	sales    []*domain.Sale
	payments []*domain.Payment
}

func (d *dataset) size() int {
	return len(d.clients) + len(d.sales) + len(d.payments)
}

func main() {
	driver := flag.String("driver", "sqlite", "Store driver: sqlite, postgres or mysql")
	sqlitePath := flag.String("sqlite", "./tally.db", "SQLite database path")
	mysqlDSN := flag.String("mysql-dsn", "", "MySQL DSN or mysql:// URL")
	pgHost := flag.String("pg-host", "localhost", "PostgreSQL host")
	pgDB := flag.String("pg-db", "tally", "PostgreSQL database")
	pgUser := flag.String("pg-user", "", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "", "PostgreSQL password")
	clients := flag.Int("clients", 40, "Number of clients to create")
	days := flag.Int("days", 120, "Spread sales over this many past days")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
	flag.Parse()

	if *clients <= 0 || *days <= 0 {
		fmt.Println("Usage: seed [-clients N] [-days N] [-driver sqlite|postgres|mysql]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:           *driver,
		SQLitePath:       *sqlitePath,
		MySQLDSN:         *mysqlDSN,
		PostgresHost:     *pgHost,
		PostgresPort:     5432,
		PostgresDB:       *pgDB,
		PostgresUser:     *pgUser,
		PostgresPassword: *pgPassword,
	})
	if err != nil {
		fmt.Printf("ERROR: failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	r := rand.New(rand.NewPCG(*seed, *seed>>1))
	data := generate(r, *clients, *days, time.Now().UTC())

	fmt.Printf("Seeding %s store (seed %d)\n", *driver, *seed)
	fmt.Printf("  Clients:  %d\n", len(data.clients))
	fmt.Printf("  Sales:    %d\n", len(data.sales))
	fmt.Printf("  Payments: %d\n", len(data.payments))

	if err := write(context.Background(), repo, data); err != nil {
		fmt.Printf("\nERROR: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nDone.")
}

// write stores clients first, then sales, then payments, so references resolve.
func write(ctx context.Context, repo domain.Repository, data *dataset) error {
	bar := progressbar.Default(int64(data.size()), "writing")

	for _, c := range data.clients {
		if err := repo.SaveClient(ctx, c); err != nil {
			return fmt.Errorf("save client %s: %w", c.ID, err)
		}
		_ = bar.Add(1)
	}
	for _, s := range data.sales {
		if err := repo.SaveSale(ctx, s); err != nil {
			return fmt.Errorf("save sale %s: %w", s.ID, err)
		}
		_ = bar.Add(1)
	}
	for _, p := range data.payments {
		if err := repo.SavePayment(ctx, p); err != nil {
			return fmt.Errorf("save payment %s: %w", p.ID, err)
		}
		_ = bar.Add(1)
	}
	return bar.Finish()
}

// generate builds a deterministic dataset for the given random source.
// Every sale is dated within the last days days and before now.
func generate(r *rand.Rand, clients, days int, now time.Time) *dataset {
	data := &dataset{}
	span := time.Duration(days) * 24 * time.Hour

	for i := 0; i < clients; i++ {
		c := &domain.Client{
			ID:        uuid.NewString(),
			FirstName: firstNames[r.IntN(len(firstNames))],
			LastName:  lastNames[r.IntN(len(lastNames))],
			CreatedAt: now.Add(-span),
		}
		// A few clients have no phone and never show up in call lists.
		if r.IntN(10) > 0 {
			c.Phone = fmt.Sprintf("+22177%07d", r.IntN(10_000_000))
		}
		data.clients = append(data.clients, c)

		// Regulars buy often, occasional clients a handful of times.
		purchases := 1 + r.IntN(4)
		if r.IntN(3) == 0 {
			purchases = 8 + r.IntN(25)
		}
		for j := 0; j < purchases; j++ {
			sale := randomSale(r, c.ID, now.Add(-time.Duration(r.Int64N(int64(span)))))
			data.sales = append(data.sales, sale)
			if p := laterPayment(r, sale, now); p != nil {
				data.payments = append(data.payments, p)
			}
		}
	}
	return data
}

func randomSale(r *rand.Rand, clientID string, date time.Time) *domain.Sale {
	sale := &domain.Sale{
		ID:       uuid.NewString(),
		ClientID: clientID,
		Date:     date,
	}

	lines := 1 + r.IntN(4)
	for k := 0; k < lines; k++ {
		p := products[r.IntN(len(products))]
		item := domain.LineItem{Name: p.name, Quantity: float64(1 + r.IntN(5)), UnitPrice: p.price}
		sale.Items = append(sale.Items, item)
		sale.Total += item.Quantity * item.UnitPrice
	}

	switch n := r.IntN(20); {
	case n < 13:
		sale.Status = domain.StatusPaid
		sale.AmountPaid = sale.Total
	case n < 18:
		sale.Status = domain.StatusCredit
	default:
		sale.Status = domain.StatusPartial
		sale.AmountPaid = math.Round(sale.Total * (0.2 + 0.5*r.Float64()))
	}
	return sale
}

// laterPayment settles about half of the credit sales, fully or in part.
func laterPayment(r *rand.Rand, sale *domain.Sale, now time.Time) *domain.Payment {
	if !sale.Status.IsCredit() || r.IntN(2) == 0 {
		return nil
	}
	owed := sale.Total - sale.AmountPaid
	amount := owed
	if r.IntN(3) == 0 {
		amount = math.Round(owed / 2)
	}
	if amount <= 0 {
		return nil
	}

	date := sale.Date.Add(time.Duration(1+r.IntN(20)) * 24 * time.Hour)
	if date.After(now) {
		date = now
	}
	return &domain.Payment{
		ID:     uuid.NewString(),
		SaleID: sale.ID,
		Amount: amount,
		Date:   date,
		Method: "cash",
	}
}
