// Package main is the entry point for the live-auction bidding engine.
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nexusengine/liveauction/internal/admission"
	"github.com/nexusengine/liveauction/internal/clock"
	"github.com/nexusengine/liveauction/internal/coldstore"
	"github.com/nexusengine/liveauction/internal/config"
	"github.com/nexusengine/liveauction/internal/domain"
	"github.com/nexusengine/liveauction/internal/fanout"
	"github.com/nexusengine/liveauction/internal/finalize"
	"github.com/nexusengine/liveauction/internal/gateway"
	"github.com/nexusengine/liveauction/internal/hotstate"
	"github.com/nexusengine/liveauction/internal/jobs"
	"github.com/nexusengine/liveauction/internal/metrics"
	"github.com/nexusengine/liveauction/internal/middleware"
	"github.com/nexusengine/liveauction/internal/money"
	"github.com/nexusengine/liveauction/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("loading configuration: %v", err))
	}

	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, TimeFormat: time.RFC3339})
	log := logger.Log

	log.Info().
		Int("port", cfg.Server.Port).
		Str("hot_addr", cfg.Hot.Addr).
		Str("cold_host", cfg.Cold.Host).
		Msg("starting live-auction bidding engine")

	m := metrics.NewMetrics("liveauction")

	redisOpts := &redis.Options{
		Addr:     cfg.Hot.Addr,
		Password: cfg.Hot.Password,
		DB:       cfg.Hot.DB,
	}
	if cfg.Hot.TLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to reach hot-state redis")
	}

	cold, err := coldstore.Open(ctx, cfg.Cold)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to cold store")
	}

	hot := hotstate.NewStore(redisClient, clock.Real{}, log)
	bus := fanout.New(redisClient, m, log)

	// coord starts nil and is assigned after runner is built below. The
	// finalize-auction handler closes over the coord variable itself
	// (not a bound method value, which would freeze the nil receiver),
	// so by the time a finalize job actually runs it sees the real
	// coordinator.
	var coord *finalize.Coordinator

	runner := jobs.NewRunner(log,
		jobs.QueueConfig{
			Name:        jobs.KindPersistBid,
			MaxAttempts: 3,
			BackoffBase: 2 * time.Second,
			Workers:     4,
			Handler:     persistBidHandler(cold, m),
		},
		jobs.QueueConfig{
			Name:        jobs.KindUpdateAuctionMirror,
			MaxAttempts: 3,
			BackoffBase: time.Second,
			Workers:     4,
			Handler:     updateMirrorHandler(cold, m),
		},
		jobs.QueueConfig{
			Name:        jobs.KindFinalizeAuction,
			MaxAttempts: uint64(cfg.Finalize.MaxAttempts),
			BackoffBase: 5 * time.Second,
			Workers:     2,
			Handler: func(ctx context.Context, job jobs.Job) error {
				payload, ok := job.Payload.(jobs.FinalizeAuctionPayload)
				if !ok {
					return fmt.Errorf("malformed finalize-auction payload for %s", job.Key)
				}
				return coord.Finalize(ctx, payload.AuctionID, payload.Trigger)
			},
		},
	)

	coord = finalize.New(hot, cold.Auctions, bus, runner, m, clock.Real{}, log)

	admissionSvc := admission.New(
		hot, cold.Auctions, runner, bus, coord,
		admission.NewRedisRateLimiter(redisClient), m,
		clock.Real{}, log,
		admission.Config{
			RateLimitPerSec: cfg.Bid.RateLimitPerSec,
			ExtThresholdSec: cfg.Auction.ExtensionThresholdSec,
			ExtDurationSec:  cfg.Auction.ExtensionDurationSec,
			Retention:       time.Duration(cfg.Auction.RetentionSec) * time.Second,
		},
	)

	hub := gateway.NewHub(ctx, admissionSvc, log)
	hub.Start()

	authenticator := gateway.NewStaticTokenAuthenticator(loadBidderTokens())
	gwServer := gateway.NewServer(hub, authenticator, clock.Real{}, log)

	runner.Start(ctx)

	go hub.FanoutLoop(ctx, bus.SubscribeBidPlaced(ctx), bus.SubscribeAuctionEnded(ctx))
	go func() {
		if err := coord.WatchExpirations(ctx); err != nil {
			log.Error().Err(err).Msg("expiry watch loop exited")
		}
	}()

	retention := time.Duration(cfg.Auction.RetentionSec) * time.Second
	if err := coord.Recover(ctx, retention); err != nil {
		log.Error().Err(err).Msg("startup recovery failed")
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", gwServer)
	mux.Handle("/health", healthHandler())
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/internal/auctions/", debugAuctionHandler(cold))

	cors := middleware.NewCORS(middleware.DefaultCORSConfig())
	security := middleware.NewSecurityHeaders(middleware.DefaultSecurityConfig())
	sizeLimiter := middleware.NewSizeLimiter(middleware.DefaultSizeLimitConfig())
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())

	// CORS outermost so preflight OPTIONS is handled before anything else;
	// security headers next so every response carries them; the HTTP-layer
	// rate limiter guards the websocket upgrade and debug endpoints from
	// connection floods (distinct from the per-bidder 1-bid-per-second gate
	// in internal/admission, which protects the bid path itself); metrics
	// wraps the routed handler so in-flight/duration cover the actual work.
	handler := http.Handler(mux)
	handler = m.Middleware(handler)
	handler = sizeLimiter.Middleware(handler)
	handler = rateLimiter.Middleware(handler)
	handler = security(handler)
	handler = cors(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	hub.Stop()
	rateLimiter.Stop()
	runner.Stop()
	if err := cold.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing cold store")
	}
	if err := redisClient.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing redis client")
	}

	log.Info().Msg("server stopped gracefully")
}

// persistBidHandler replays an admitted bid into the append-only bids
// table. Jobs never make admission decisions; the bid already stands by
// the time this runs.
func persistBidHandler(cold *coldstore.Store, m *metrics.Metrics) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(jobs.PersistBidPayload)
		if !ok {
			return fmt.Errorf("malformed persist-bid payload for %s", job.Key)
		}
		amount, err := money.ParseAmount(payload.Amount)
		if err != nil {
			return fmt.Errorf("persist-bid: parsing amount: %w", err)
		}
		previousBid, err := money.ParseAmount(payload.PreviousBid)
		if err != nil {
			return fmt.Errorf("persist-bid: parsing previous bid: %w", err)
		}
		bidTime, err := time.Parse(time.RFC3339Nano, payload.ServerTime)
		if err != nil {
			return fmt.Errorf("persist-bid: parsing server time: %w", err)
		}
		m.RecordJobEnqueued(string(jobs.KindPersistBid))
		err = cold.Bids.Insert(ctx, domain.Bid{
			// Derived from the job's natural key, so a retried or redelivered
			// job reuses the same bid id and the insert stays a no-op.
			ID:          uuid.NewSHA1(uuid.NameSpaceURL, []byte(job.Key)).String(),
			AuctionID:   payload.AuctionID,
			BidderID:    payload.BidderID,
			Amount:      amount,
			BidTime:     bidTime,
			PreviousBid: previousBid,
			IsWinning:   true,
			IPAddress:   payload.IPAddress,
			UserAgent:   payload.UserAgent,
		})
		if err != nil {
			m.RecordJobAttempt(string(jobs.KindPersistBid), "retry")
			return err
		}
		m.RecordJobAttempt(string(jobs.KindPersistBid), "success")
		m.RecordBidAccepted(payload.AuctionID, 0)
		return nil
	}
}

// updateMirrorHandler replays an admitted bid's (or an extension's)
// current-bid/end-time fields into the coldstore mirror row.
func updateMirrorHandler(cold *coldstore.Store, m *metrics.Metrics) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(jobs.UpdateAuctionMirrorPayload)
		if !ok {
			return fmt.Errorf("malformed update-auction-mirror payload for %s", job.Key)
		}
		existing, err := cold.Auctions.GetByID(ctx, payload.AuctionID)
		if err != nil {
			return fmt.Errorf("update-mirror: loading %s: %w", payload.AuctionID, err)
		}
		if payload.CurrentBid != "" {
			amount, err := money.ParseAmount(payload.CurrentBid)
			if err != nil {
				return fmt.Errorf("update-mirror: parsing amount: %w", err)
			}
			existing.CurrentBid = amount
			existing.HighestBidderID = payload.HighestBidderID
			existing.TotalBids = payload.TotalBids
		}
		if payload.EndTime != "" {
			endTime, err := time.Parse(time.RFC3339Nano, payload.EndTime)
			if err != nil {
				return fmt.Errorf("update-mirror: parsing end time: %w", err)
			}
			existing.EndTime = endTime
		}
		existing.UpdatedAt = time.Now().UTC()

		m.RecordJobEnqueued(string(jobs.KindUpdateAuctionMirror))
		if err := cold.Auctions.UpdateMirror(ctx, existing); err != nil {
			m.RecordJobAttempt(string(jobs.KindUpdateAuctionMirror), "retry")
			return err
		}
		m.RecordJobAttempt(string(jobs.KindUpdateAuctionMirror), "success")
		return nil
	}
}

func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
}

// debugAuctionHandler is scaffolding only (SPEC_FULL.md §6): it lets
// integration tests read back a mirrored auction without a separate
// catalogue service running. Not a public contract.
func debugAuctionHandler(cold *coldstore.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/internal/auctions/")
		if id == "" {
			http.Error(w, `{"error":"missing auction id"}`, http.StatusBadRequest)
			return
		}
		auc, err := cold.Auctions.GetByID(r.Context(), id)
		if err != nil {
			http.Error(w, `{"error":"auction not found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(auc)
	})
}

// loadBidderTokens builds the gateway's bearer-token map from the
// BIDDER_TOKENS env var, formatted "token:userId:username,...".
func loadBidderTokens() map[string]gateway.Identity {
	tokens := make(map[string]gateway.Identity)
	raw := os.Getenv("BIDDER_TOKENS")
	if raw == "" {
		return tokens
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 3)
		if len(parts) < 2 {
			continue
		}
		identity := gateway.Identity{UserID: parts[1]}
		if len(parts) == 3 {
			identity.Username = parts[2]
		}
		tokens[parts[0]] = identity
	}
	return tokens
}
