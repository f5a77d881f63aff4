package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"roommatch/cache"
	"roommatch/config"
	"roommatch/database"
	"roommatch/distance"
	"roommatch/engine"
	"roommatch/handlers"
	"roommatch/logging"
	"roommatch/middleware"
	"roommatch/notify"
	"roommatch/presence"
	"roommatch/routes"
	"roommatch/store"
	"roommatch/unread"
	"roommatch/websocket"
)

func main() {
	log.Println("🚀 Starting Roommatch Server...")

	cfg := config.LoadConfig()
	logger := logging.New(cfg.Release())
	clock := clockwork.NewRealClock()
	middleware.SetJWTSecret(cfg.JWTSecret)

	// ===== CONNECT TO MONGODB WITH RETRY =====
	log.Println("🔌 Connecting to MongoDB...")

	var dbErr error
	for i := 1; i <= 3; i++ {
		if err := database.ConnectMongo(cfg.MongoURI, cfg.MongoDatabase); err != nil {
			dbErr = err
			log.Printf("❌ MongoDB connection attempt %d failed: %v", i, err)
			time.Sleep(2 * time.Second)
			continue
		}
		dbErr = nil
		break
	}
	if dbErr != nil {
		log.Fatal("❌ Failed to connect to MongoDB:", dbErr)
	}
	log.Println("✅ MongoDB connected successfully")

	profiles := store.NewMongoProfiles(database.Profiles, logger)
	messaging := store.NewMongoMessaging(database.Messages, clock, logger)
	pins := store.NewMongoPins(database.Pins, clock)
	subs := store.NewMongoSubscriptions(database.PushSubs)

	// ===== REDIS (optional) =====
	var (
		geoCache      cache.Cache    = cache.NewMemoryCache(clock)
		presenceStore presence.Store = presence.NewMemoryStore(clock)
		redisClient   *redis.Client
	)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("❌ Invalid REDIS_URL:", err)
		}
		redisClient = redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal("❌ Redis ping failed:", err)
		}
		geoCache = cache.NewRedisCacheFromClient(redisClient, "roommatch:")
		presenceStore = presence.NewRedisStore(redisClient, clock)
		log.Println("✅ Redis connected: geocode cache and presence are shared")
	} else {
		log.Println("⚠️  REDIS_URL not set, using in-process cache and presence")
	}

	// ===== DISTANCE =====
	var geocoder distance.Geocoder
	if cfg.GeocoderURL != "" {
		geocoder = distance.NewCachedGeocoder(distance.NewHTTPGeocoder(cfg.GeocoderURL), geoCache, cfg.GeocodeCacheTTL)
		log.Printf("🗺️  Geocoding via %s", cfg.GeocoderURL)
	}
	estimator := distance.NewEstimator(geocoder, cfg.GeocodeTimeout, logger)

	// ===== UNREAD WATERMARKS =====
	watermarks, err := unread.OpenSQLite(context.Background(), cfg.UnreadDBPath)
	if err != nil {
		log.Fatal("❌ Failed to open unread store:", err)
	}

	// ===== NOTIFICATIONS =====
	var (
		dispatcher notify.Dispatcher
		taskQueue  *notify.AsynqDispatcher
	)
	if cfg.RedisURL != "" {
		taskQueue, err = notify.NewAsynqDispatcher(cfg.RedisURL, 10, logger)
		if err != nil {
			log.Fatal("❌ Failed to create task queue:", err)
		}
		dispatcher = taskQueue
	} else {
		dispatcher = notify.NewInlineDispatcher(logger)
	}
	var notifier engine.ProfilesNotifier
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pusher := notify.NewWebPusher(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
		notifier = notify.NewNotifier(dispatcher, subs, pusher, logger)
	} else {
		log.Println("⚠️  VAPID keys not set, push notifications disabled (run cmd/vapidgen)")
	}
	if taskQueue != nil {
		if err := taskQueue.Start(); err != nil {
			log.Fatal("❌ Failed to start task worker:", err)
		}
		log.Println("✅ Notification worker started")
	}

	// ===== ENGINE =====
	eng, err := engine.New(engine.Options{
		Profiles:     profiles,
		Messaging:    messaging,
		Pins:         pins,
		Presence:     presenceStore,
		Watermarks:   watermarks,
		Distance:     estimator,
		Notifier:     notifier,
		Clock:        clock,
		Logger:       logger,
		SyncInterval: cfg.SyncInterval,
	})
	if err != nil {
		log.Fatal("❌ Failed to build engine:", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		log.Fatal("❌ Failed to start engine:", err)
	}
	log.Println("✅ Matching engine started")

	// ===== GIN MODE =====
	if cfg.Release() {
		gin.SetMode(gin.ReleaseMode)
		log.Println("⚙️ Running in RELEASE mode")
	} else {
		gin.SetMode(gin.DebugMode)
		log.Println("⚙️ Running in DEBUG mode")
	}

	// ===== WEBSOCKET =====
	log.Println("🔌 Initializing WebSocket manager...")
	wsManager := websocket.NewManager(eng, logger)
	go wsManager.Start()

	handlers.SetEngine(eng)
	handlers.SetWebSocketManager(wsManager)
	handlers.SetPushSubscriptions(subs)
	handlers.SetVAPIDPublicKey(cfg.VAPIDPublicKey)
	handlers.SetLogger(logger)
	if cfg.CloudinaryURL != "" {
		uploader, err := handlers.NewCloudinaryUploader(cfg.CloudinaryURL)
		if err != nil {
			log.Fatal("❌ Cloudinary configuration error:", err)
		}
		handlers.SetImageUploader(uploader)
	}

	// ===== ROUTER =====
	rl := middleware.NewRateLimiter(clock, 30, time.Minute)
	router := routes.SetupRouter(cfg, wsManager, rl)

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ Server error:", err)
		}
	}()

	log.Println("✅ Server is ready and accepting connections")

	// ===== GRACEFUL SHUTDOWN =====
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("❌ Forced shutdown:", err)
	}
	wsManager.Stop()
	eng.Stop(shutdownCtx)
	if err := dispatcher.Close(); err != nil {
		log.Println("❌ Task queue close:", err)
	}
	if err := watermarks.Close(); err != nil {
		log.Println("❌ Unread store close:", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := database.DisconnectMongo(); err != nil {
		log.Println("❌ MongoDB disconnect:", err)
	}

	log.Println("👋 Server stopped gracefully")
}
