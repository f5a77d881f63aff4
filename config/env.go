package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays values from the environment. A .env file in the working
// directory is loaded first when present; variables already set in the real
// environment win over the file.
func parseEnv(config *Config) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️  Failed to read .env: %v", err)
	}

	setString(&config.Port, "PORT")
	setString(&config.GinMode, "GIN_MODE")
	setString(&config.MongoURI, "MONGODB_URI")
	setString(&config.MongoDatabase, "MONGODB_DATABASE")
	setString(&config.JWTSecret, "JWT_SECRET")
	setString(&config.RedisURL, "REDIS_URL")
	setString(&config.GeocoderURL, "GEOCODER_URL")
	setDuration(&config.GeocodeTimeout, "GEOCODE_TIMEOUT")
	setDuration(&config.GeocodeCacheTTL, "GEOCODE_CACHE_TTL")
	setDuration(&config.SyncInterval, "SYNC_INTERVAL")
	setString(&config.UnreadDBPath, "UNREAD_DB_PATH")
	setString(&config.CloudinaryURL, "CLOUDINARY_URL")
	setString(&config.VAPIDPublicKey, "VAPID_PUBLIC_KEY")
	setString(&config.VAPIDPrivateKey, "VAPID_PRIVATE_KEY")
	setString(&config.VAPIDSubscriber, "VAPID_EMAIL")

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		var list []string
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				list = append(list, o)
			}
		}
		config.AllowedOrigins = list
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️  Ignoring %s=%q: %v", key, v, err)
		return
	}
	*dst = d
}
