package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"
	"go.uber.org/zap"

	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/catalog"
	"storefront_back_end/internal/config"
	"storefront_back_end/internal/database"
	"storefront_back_end/internal/events"
	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/logger"
	"storefront_back_end/internal/metrics"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/payment"
	"storefront_back_end/internal/routes"
	"storefront_back_end/internal/services"
	"storefront_back_end/internal/store/mongostore"
	"storefront_back_end/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New("storefront", cfg.Env, cfg.LogFile)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stripe.Key = cfg.StripeSecretKey

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	mongoClient, db, err := database.ConnectMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	if err := mongostore.EnsureIndexes(connectCtx, db); err != nil {
		return err
	}
	log.Info("connected to mongo", zap.String("database", cfg.MongoDatabase))

	scylla, err := database.ConnectScylla(database.ScyllaConfig{
		Hosts:    cfg.ScyllaHosts,
		Keyspace: cfg.ScyllaKeyspace,
		Username: cfg.ScyllaUsername,
		Password: cfg.ScyllaPassword,
	})
	if err != nil {
		return err
	}
	defer scylla.Close()
	log.Info("connected to scylla", zap.String("keyspace", cfg.ScyllaKeyspace))

	rdb, err := cache.NewClient(connectCtx, cfg.RedisHost, cfg.RedisPassword)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()
	log.Info("connected to redis", zap.String("addr", cfg.RedisHost))

	m := metrics.New()
	products := catalog.NewScyllaCatalog(scylla)
	cached := catalog.NewCachedCatalog(products, rdb, cfg.ProductCacheTTL, log)
	cartEvents := cache.NewCartEvents(rdb)

	var search handlers.ProductSearcher
	es, err := database.ConnectElastic(cfg.ElasticURL, cfg.ElasticUser, cfg.ElasticPassword)
	switch {
	case err != nil:
		log.Warn("search disabled", zap.Error(err))
	case es != nil:
		idx := catalog.NewSearchIndex(es, catalog.DefaultSearchIndex)
		search = idx
		go func() {
			ids, err := idx.Sync(ctx, products, 1000, log)
			if err != nil {
				log.Warn("search index sync failed", zap.Error(err))
				return
			}
			// drop stale cache entries so reads agree with what search returns
			if err := cached.Invalidate(ctx, ids...); err != nil {
				log.Warn("product cache invalidation failed", zap.Error(err))
			}
			log.Info("search index synced", zap.Int("products", len(ids)))
		}()
	}

	var receipts services.ReceiptStore
	mc, err := database.ConnectMinIO(database.MinIOConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
	})
	switch {
	case err != nil:
		log.Warn("receipts disabled", zap.Error(err))
	case mc != nil:
		archive := services.NewReceiptArchive(mc, cfg.MinioBucket, 15*time.Minute)
		if err := archive.EnsureBucket(connectCtx); err != nil {
			log.Warn("receipts disabled", zap.Error(err))
		} else {
			receipts = archive
		}
	}

	var publisher interface {
		services.OrderEventPublisher
		Close() error
	} = events.Nop{}
	if cfg.KafkaBrokers != "" {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		log.Info("order events enabled", zap.String("topic", cfg.KafkaOrderTopic))
	}
	defer func() { _ = publisher.Close() }()

	var mailer services.ConfirmationMailer
	if cfg.SMTPHost != "" {
		mailer = utils.NewMailer(utils.MailerConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Currency: cfg.Currency,
		})
	}

	gateway := payment.NewStripeGateway(cfg.Currency)
	carts := mongostore.NewCartStore(db)
	orders := mongostore.NewOrderStore(db)

	cartSvc := services.NewCartService(services.CartDeps{
		Carts:    carts,
		Catalog:  cached,
		Notifier: cartEvents,
		Log:      log,
		Metrics:  m,
	}, services.CartConfig{MaxItems: cfg.MaxCartItems, MaxItemQuantity: cfg.MaxItemQuantity})

	// checkout reads stock from the source of truth, not the cache
	checkoutSvc := services.NewCheckoutService(services.CheckoutDeps{
		Carts:    carts,
		Orders:   orders,
		Catalog:  products,
		Gateway:  gateway,
		Events:   publisher,
		Receipts: receipts,
		Log:      log,
		Metrics:  m,
	}, services.CheckoutConfig{ClientURL: cfg.ClientURL})

	paymentSvc := services.NewPaymentService(services.PaymentDeps{
		Carts:    carts,
		Orders:   orders,
		Gateway:  gateway,
		Notifier: cartEvents,
		Events:   publisher,
		Mailer:   mailer,
		Receipts: receipts,
		Log:      log,
		Metrics:  m,
	}, cfg.StripeWebhookSecret)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), m.Middleware())

	origins := []string{cfg.ClientURL}
	routes.RegisterRoutes(r, routes.Deps{
		JWTSecret:      []byte(cfg.JWTSecret),
		AllowedOrigins: origins,
		CartRateLimit:  cfg.CartRateLimit,
		Limiter:        cache.NewRateLimiter(rdb),
		Metrics:        m,
		Products:       handlers.NewProductHandler(cached, search),
		Cart:           handlers.NewCartHandler(cartSvc),
		CartWS:         handlers.NewCartWebSocket(cartSvc, cartEvents, origins),
		Orders:         handlers.NewOrderHandler(checkoutSvc),
		Payments:       handlers.NewPaymentHandler(paymentSvc),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
