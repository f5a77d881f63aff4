package config

import (
	"flag"
	"os"
)

// parseFlags overlays selected Config fields from command-line flags.
//
//	-a string     listen port
//	-d string     MongoDB URI
//	-r string     Redis URL (empty disables Redis-backed adapters)
//	-g string     geocoder base URL (empty disables the geocoding tier)
//	-u string     unread watermark SQLite path
//	-i duration   backup profile sync interval
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("roommatch", flag.ContinueOnError)

	fs.StringVar(&config.Port, "a", config.Port, "port to listen on")
	fs.StringVar(&config.MongoURI, "d", config.MongoURI, "MongoDB URI")
	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "Redis URL")
	fs.StringVar(&config.GeocoderURL, "g", config.GeocoderURL, "geocoder base URL")
	fs.StringVar(&config.UnreadDBPath, "u", config.UnreadDBPath, "unread watermark database path")
	fs.DurationVar(&config.SyncInterval, "i", config.SyncInterval, "backup profile sync interval")

	if err := fs.Parse(os.Args[1:]); err != nil {
		panic(err)
	}
}
