// promogen issues a batch of promo codes and writes them to a file, one
// code per line, ready to hand out. With -export it skips issuing and
// dumps the currently redeemable codes instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"telegram-tarot-subscription/internal/config"
	"telegram-tarot-subscription/internal/infra/logging"
	"telegram-tarot-subscription/internal/infra/records"
	memstore "telegram-tarot-subscription/internal/infra/store/memory"
	pgstore "telegram-tarot-subscription/internal/infra/store/postgres"
	"telegram-tarot-subscription/internal/infra/store/supabase"
	"telegram-tarot-subscription/internal/domain/ports/store"
	"telegram-tarot-subscription/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	count := flag.Int("count", 10, "number of codes to issue")
	days := flag.Int("days", 30, "subscription length granted by each code")
	maxUses := flag.Int("max-uses", 1, "redemptions allowed per code")
	out := flag.String("out", "promo_codes.txt", "output file, one code per line")
	exportOnly := flag.Bool("export", false, "export existing redeemable codes instead of issuing")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var st store.Store
	switch cfg.Store.Driver {
	case "supabase":
		st, err = supabase.NewClient(cfg.Store.Supabase, logger)
		if err != nil {
			log.Fatalf("supabase: %v", err)
		}
	case "postgres":
		pool, perr := pgstore.Connect(ctx, cfg.Store.Postgres.URL)
		if perr != nil {
			log.Fatalf("postgres: %v", perr)
		}
		defer pool.Close()
		st = pgstore.NewStore(pool, logger)
	case "memory":
		st = memstore.NewStore().WithUnique("promo_codes", "code")
	default:
		log.Fatalf("unknown store driver %q", cfg.Store.Driver)
	}

	promoRepo := records.NewPromoCodeRepo(st, logger)
	promoUC := usecase.NewPromoUseCase(promoRepo, cfg.Promo.Prefix, cfg.Promo.CodeLength, logger)

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create %s: %v", *out, err)
	}
	defer f.Close()

	if *exportOnly {
		all, err := promoUC.ListAll(ctx)
		if err != nil {
			log.Fatalf("list codes: %v", err)
		}
		n, err := usecase.ExportActiveCodes(all, f, time.Now().UTC())
		if err != nil {
			log.Fatalf("write %s: %v", *out, err)
		}
		fmt.Printf("exported %d redeemable codes to %s\n", n, *out)
		return
	}

	report, err := promoUC.IssueBatch(ctx, *count, *days, *maxUses, "promogen", "")
	if err != nil {
		log.Fatalf("issue batch: %v", err)
	}
	for _, code := range report.Issued {
		if _, err := fmt.Fprintln(f, code); err != nil {
			log.Fatalf("write %s: %v", *out, err)
		}
	}
	fmt.Printf("issued %d/%d codes, written to %s\n", len(report.Issued), report.Requested, *out)
	if len(report.Issued) < report.Requested {
		os.Exit(1)
	}
}
