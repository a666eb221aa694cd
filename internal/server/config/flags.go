package config

import (
	"flag"
	"os"

	"github.com/lskl-cc/souzou/internal/flagx"
)

// parseFlags overlays Config with command-line flags:
//
//	-a string   bind address
//	-d string   PostgreSQL DSN
//	-k string   JWT signing secret (empty disables auth)
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-k"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.EndpointAddr, "a", cfg.EndpointAddr, "bind address")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "PostgreSQL DSN")
	fs.StringVar(&cfg.SecretKey, "k", cfg.SecretKey, "JWT signing secret")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
