package config

// Version is the application version, set at build time via ldflags:
//
//	go build -ldflags "-X github.com/jermoo/tokencore/internal/config.Version=1.2.3" ./cmd/tokencored
var Version = "0.1.0"
