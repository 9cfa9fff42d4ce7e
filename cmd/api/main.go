package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/minhvo/storefront-backend/internal/modules/cart"
	"github.com/minhvo/storefront-backend/internal/modules/catalog"
	"github.com/minhvo/storefront-backend/internal/modules/coupon"
	"github.com/minhvo/storefront-backend/internal/modules/identity"
	"github.com/minhvo/storefront-backend/internal/modules/notify"
	"github.com/minhvo/storefront-backend/internal/modules/order"
	"github.com/minhvo/storefront-backend/internal/modules/payment"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Successfully connected to the database!")

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	verifier := identity.NewVerifier(os.Getenv("JWT_SECRET"))

	// ── Best-effort event path ──────────────────────────────
	var notifier interface {
		order.Notifier
		payment.Notifier
	} = notify.NopNotifier{}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		publisher := notify.NewKafkaPublisher(strings.Split(brokers, ","))
		defer publisher.Close()
		notifier = notify.NewNotifier(publisher)
	}

	// ── Catalog, coupons, cart ──────────────────────────────
	catalogReader := catalog.NewPostgresReader(db)
	stockLedger := catalog.NewStockLedger()

	couponRepo := coupon.NewPostgresRepository(db)
	couponLedger := coupon.NewLedger(couponRepo)

	cartRepo := cart.NewPostgresRepository(db)
	cartService := cart.NewService(cartRepo, catalogReader)

	// ── Orders & payments ───────────────────────────────────
	orderRepo := order.NewPostgresRepository(db, stockLedger, couponLedger, cartRepo)

	signer := payment.NewSigner(os.Getenv("PAYMENT_CHECKSUM_SECRET"))
	gateway := payment.NewHTTPGateway(payment.GatewayConfig{
		BaseURL:        os.Getenv("PAYMENT_BASE_URL"),
		ClientID:       os.Getenv("PAYMENT_CLIENT_ID"),
		APIKey:         os.Getenv("PAYMENT_API_KEY"),
		ChecksumSecret: os.Getenv("PAYMENT_CHECKSUM_SECRET"),
		ReturnURL:      os.Getenv("PAYMENT_RETURN_URL"),
		CancelURL:      os.Getenv("PAYMENT_CANCEL_URL"),
		Timeout:        10 * time.Second,
	})
	paymentRepo := payment.NewPostgresRepository(db)
	paymentService := payment.NewService(paymentRepo, orderRepo, gateway, signer, notifier)

	orderService := order.NewService(orderRepo, catalogReader, cartRepo, couponLedger,
		paymentService, notifier, pricingFromEnv())

	// ── Routes ──────────────────────────────────────────────
	paymentHandler := payment.NewHandler(paymentService)
	paymentHandler.RegisterWebhook(router) // signature-authenticated, no bearer token

	router.Group(func(r chi.Router) {
		r.Use(identity.Middleware(verifier))
		cart.NewHandler(cartService).RegisterRoutes(r)
		coupon.NewHandler(couponLedger).RegisterRoutes(r)
		order.NewHandler(orderService).RegisterRoutes(r)
		paymentHandler.RegisterRoutes(r)
	})

	// ── Start Server ─────────────────────────────────────────
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Printf("Storefront API server starting on :%s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}

// pricingFromEnv reads the pricing knobs, falling back to the defaults for
// anything unset or malformed.
func pricingFromEnv() order.PricingConfig {
	cfg := order.DefaultPricingConfig()
	if v, err := strconv.ParseInt(os.Getenv("TAX_RATE_BASIS_POINTS"), 10, 64); err == nil {
		cfg.TaxRateBasisPoints = v
	}
	if v, err := strconv.ParseInt(os.Getenv("FREE_SHIPPING_THRESHOLD"), 10, 64); err == nil {
		cfg.FreeShippingThreshold = v
	}
	if v, err := strconv.ParseInt(os.Getenv("FLAT_SHIPPING_FEE"), 10, 64); err == nil {
		cfg.FlatShippingFee = v
	}
	return cfg
}
