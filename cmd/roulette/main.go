package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Hackathon-Apps/go-roulette-api/internal/app/chain"
	"github.com/Hackathon-Apps/go-roulette-api/internal/app/config"
	"github.com/Hackathon-Apps/go-roulette-api/internal/app/donation"
	"github.com/Hackathon-Apps/go-roulette-api/internal/app/metrics"
	"github.com/Hackathon-Apps/go-roulette-api/internal/app/roulette"
	"github.com/Hackathon-Apps/go-roulette-api/internal/app/storage"
)

var (
	configPath string
)

func init() {
	flag.StringVar(&configPath, "config-path", "configs/roulette.toml", "path to config file")
}

func main() {
	flag.Parse()

	configuration, err := loadConfiguration(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := configureLogger(configuration)
	if err != nil {
		log.Fatal(err)
	}
	if !configuration.DonationsEnabled() {
		logger.Warn("donation_wallet is not set, TON donations are disabled")
	}

	db, err := storage.Connect(configuration, logger)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal(err)
	}

	m := metrics.New(nil)
	indexer := chain.NewIndexerClient(configuration.TonApiURL, configuration.TonApiKey, configuration.IndexerTimeout, logger, m)
	donations := donation.NewService(configuration.DonationWallet, indexer, db, logger, m)

	server, err := roulette.NewServer(configuration, logger, db, donations, m)
	if err != nil {
		log.Fatal(err)
	}
	if err := server.Start(); err != nil {
		log.Fatal(err)
	}
}

// loadConfiguration applies defaults, then the toml file, then .env and the
// process environment.
func loadConfiguration(path string) (*config.Configuration, error) {
	configuration := config.NewConfiguration()
	if _, err := toml.DecodeFile(path, configuration); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := configuration.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return configuration, nil
}

func configureLogger(cfg *config.Configuration) (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	formatter := &logrus.TextFormatter{}
	formatter.FullTimestamp = true
	formatter.TimestampFormat = "2006-01-02 15:04:05.000"

	logger.SetFormatter(formatter)
	logger.SetLevel(level)
	return logger, nil
}
