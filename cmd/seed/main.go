// Package main provides a CLI tool for registering shops and repairing
// stored order totals.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/app"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/config"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/auth"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/order"
	"github.com/SagorIslamOfficial/crm-order-sub001/pkg/logger"
)

const recalcPageSize = 200

func main() {
	shopsFlag := flag.String("shops", os.Getenv("SEED_SHOPS"), "comma-separated CODE:Name pairs to register")
	recalc := flag.Bool("recalculate", false, "recompute totals of every stored order")
	token := flag.String("token", "", "print a development token for this user id")
	flag.Parse()

	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	if *token != "" {
		if err := printToken(cfg, *token); err != nil {
			log.Fatalw("failed to issue token", "error", err)
		}
	}

	if *shopsFlag == "" && !*recalc {
		log.Info("nothing to do")
		return
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer a.Close()

	log.Info("connected to database")

	if *shopsFlag != "" {
		specs, err := parseShops(*shopsFlag)
		if err != nil {
			log.Fatalw("invalid shop list", "error", err)
		}
		if err := seedShops(ctx, a, specs, log); err != nil {
			log.Fatalw("failed to seed shops", "error", err)
		}
	}

	if *recalc {
		n, err := recalculateAll(ctx, a, log)
		if err != nil {
			log.Fatalw("recalculation aborted", "error", err, "processed", n)
		}
		log.Infow("recalculation finished", "orders", n)
	}

	log.Info("seeding completed successfully")
}

type shopSpec struct {
	Code string
	Name string
}

func parseShops(s string) ([]shopSpec, error) {
	var specs []shopSpec
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, name, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(code) == "" || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("expected CODE:Name, got %q", pair)
		}
		specs = append(specs, shopSpec{Code: strings.TrimSpace(code), Name: strings.TrimSpace(name)})
	}
	if len(specs) == 0 {
		return nil, errors.New("no shops given")
	}
	return specs, nil
}

func seedShops(ctx context.Context, a *app.App, specs []shopSpec, log *logger.Logger) error {
	for _, spec := range specs {
		sh, err := a.Shops.Register(ctx, spec.Code, spec.Name)
		switch {
		case apperror.IsConflict(err):
			log.Infow("shop already exists, skipping", "code", spec.Code)
		case err != nil:
			return fmt.Errorf("register %s: %w", spec.Code, err)
		default:
			log.Infow("shop created", "code", sh.Code, "id", sh.ID)
		}
	}
	return nil
}

// recalculateAll walks orders oldest first so that pages stay stable while
// totals are rewritten.
func recalculateAll(ctx context.Context, a *app.App, log *logger.Logger) (int, error) {
	filter := order.DefaultListFilter()
	filter.OrderBy = "created_at"
	filter.Limit = recalcPageSize

	processed := 0
	for {
		page, err := a.Orders.List(ctx, filter)
		if err != nil {
			return processed, err
		}
		for _, o := range page.Items {
			if _, err := a.Orders.RecalculateTotals(ctx, o.ID); err != nil {
				return processed, fmt.Errorf("order %s: %w", o.OrderNumber, err)
			}
			processed++
		}
		log.Debugw("recalculated page", "offset", filter.Offset, "count", len(page.Items))

		if len(page.Items) < filter.Limit {
			return processed, nil
		}
		filter.Offset += filter.Limit
	}
}

func printToken(cfg *config.Config, userID string) error {
	if len(cfg.JWT.Secret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 bytes")
	}
	jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
	jwtCfg.Issuer = cfg.JWT.Issuer
	jwtCfg.AccessTokenTTL = cfg.JWT.TTL

	tok, exp, err := auth.NewJWTService(jwtCfg).GenerateAccessToken(auth.Staff{
		UserID:  userID,
		Roles:   []string{"manager"},
		IsAdmin: true,
	})
	if err != nil {
		return err
	}
	fmt.Printf("token (expires %s):\n%s\n", exp.Format("2006-01-02 15:04"), tok)
	return nil
}
