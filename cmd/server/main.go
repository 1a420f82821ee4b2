package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"apartado/backend/internal/config"
	"apartado/backend/internal/domain"
	"apartado/backend/internal/events"
	"apartado/backend/internal/httpapi"
	"apartado/backend/internal/lock"
	"apartado/backend/internal/obs"
	"apartado/backend/internal/service"
	"apartado/backend/internal/store"
	"apartado/backend/internal/store/memory"
	pgstore "apartado/backend/internal/store/postgres"
	"apartado/backend/internal/till"
)

func main() {
	issue := flag.String("issue-token", "", "print a bearer token for user:role and exit (local use)")
	flag.Parse()

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	identity := httpapi.NewIdentity(cfg.IdentitySecret, cfg.ManagerPIN)

	if *issue != "" {
		userID, role, ok := strings.Cut(*issue, ":")
		if !ok || userID == "" || role == "" {
			log.Fatalf("-issue-token expects user:role")
		}
		token, err := identity.IssueToken(userID, role, 12*time.Hour)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.New()
		log.Println("repository: in-memory")
	}

	opts := service.Options{
		Metrics:       obs.New(),
		RetryAttempts: cfg.WriteRetryAttempts,
		Thresholds:    till.Thresholds{Warning: cfg.DifferenceWarning, Critical: cfg.DifferenceCritical},
	}

	if cfg.RedisAddr != "" {
		client := events.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		publisher := events.NewRedisPublisher(client, cfg.EventsChannelPrefix)
		if err := publisher.Ping(ctx); err != nil {
			// Branch locks are shared through Redis; running without them
			// would let two processes open the same branch's shift.
			log.Fatalf("redis unavailable (%v) and REDIS_ADDR is set", err)
		}
		opts.Publisher = publisher
		opts.Locker = lock.NewRedisLocker(client, "apartado:lock", time.Duration(cfg.ShiftLockTTLSeconds)*time.Second)
		closers = append(closers, publisher.Close)
		log.Printf("events: redis (%s), locks: redis", publisher.Channel(domain.EventLedgerCancelled))
	} else {
		log.Println("events: noop, locks: in-process")
	}

	svc := service.New(repo, opts)
	api := httpapi.New(svc, identity, opts.Metrics, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("apartado backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.IdentitySecret) < 32 {
		return fmt.Errorf("IDENTITY_SECRET must be set and at least 32 characters")
	}
	if httpapi.IsPINHash(cfg.ManagerPIN) {
		return nil
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("PIN must be digits only")
		}
	}

	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"121212": true, "112233": true, "123123": true, "696969": true,
		"159753": true, "102030": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
