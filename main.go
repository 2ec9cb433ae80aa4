package main

import (
	"context"
	"crypto/ecdsa"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"

	"evoting-backend/api"
	"evoting-backend/ledger"
	"evoting-backend/logging"
	"evoting-backend/service"
	"evoting-backend/storage"
)

type Config struct {
	Port        int
	StorageDir  string
	DatabaseDSN string
	RPCURL      string
	ABIPath     string
	ContractAdr string
	OperatorKey string
	RPCTimeout  time.Duration
	Debug       bool
}

func main() {
	config := parseFlags()

	log := logging.Logger
	if config.Debug {
		log = log.Level(zerolog.DebugLevel)
	}

	store, err := openStore(config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}

	votingService, err := buildVotingService(config, store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize voting service")
	}

	server := api.NewServer(votingService, log)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: server.Routes(),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	serverChan := make(chan error, 1)
	go func() {
		log.Info().Int("port", config.Port).Msg("starting server")
		serverChan <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverChan:
		log.Fatal().Err(err).Msg("server error")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
		log.Info().Msg("server shutdown completed")
	}
}

func parseFlags() *Config {
	config := &Config{}

	flag.IntVar(&config.Port, "port", 8080, "Server port")
	flag.StringVar(&config.StorageDir, "storage", "data", "Directory for the local database file")
	flag.StringVar(&config.DatabaseDSN, "db", os.Getenv("DATABASE_DSN"), "MySQL DSN (empty: local sqlite file)")
	flag.StringVar(&config.RPCURL, "rpc", os.Getenv("RPC_URL"), "Ledger node JSON-RPC endpoint")
	flag.StringVar(&config.ABIPath, "abi", os.Getenv("CONTRACT_ABI_PATH"), "Path to the voting contract build artifact")
	flag.StringVar(&config.ContractAdr, "contract", os.Getenv("CONTRACT_ADDRESS"), "Deployed voting contract address")
	flag.StringVar(&config.OperatorKey, "operator-key", os.Getenv("OPERATOR_PRIVATE_KEY"), "Operator account private key (hex)")
	flag.DurationVar(&config.RPCTimeout, "rpc-timeout", ledger.DefaultRPCTimeout, "Per-call RPC timeout")
	flag.BoolVar(&config.Debug, "debug", false, "Enable debug logging")

	flag.Parse()
	return config
}

func openStore(config *Config) (*storage.SQLStore, error) {
	if config.DatabaseDSN != "" {
		return storage.Open(mysql.Open(config.DatabaseDSN))
	}

	if err := os.MkdirAll(config.StorageDir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(config.StorageDir, "voting.db")
	return storage.Open(sqlite.Open(path))
}

// buildVotingService wires the ledger components. Each absent setting
// degrades its component rather than failing startup: the contract binding
// goes absent without an ABI or address, provisioning skips funding without
// an operator key, and the tally reader reads zeros without a node.
func buildVotingService(config *Config, store storage.Store, log zerolog.Logger) (*service.VotingService, error) {
	var client *ledger.Client
	if config.RPCURL != "" {
		var err error
		client, err = ledger.Dial(config.RPCURL, config.RPCTimeout)
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn().Msg("no RPC endpoint configured, ledger operations disabled")
	}

	contract, err := ledger.LoadContract(config.ABIPath, config.ContractAdr)
	if err != nil {
		log.Warn().Err(err).Msg("contract binding unavailable, running degraded")
		contract = nil
	}
	if contract == nil {
		log.Warn().Msg("voting contract not configured, on-chain writes disabled")
	}

	var operatorKey *ecdsa.PrivateKey
	if config.OperatorKey != "" {
		operatorKey, err = ledger.ParsePrivateKey(config.OperatorKey)
		if err != nil {
			log.Warn().Err(err).Msg("operator key invalid, funding and admin transactions disabled")
			operatorKey = nil
		}
	}

	sender := ledger.NewSender(client, log)
	provisioner := ledger.NewProvisioner(sender, contract, operatorKey, log)
	tally := ledger.NewTallyReader(client, contract, log)

	return service.NewVotingService(store, sender, contract, provisioner, tally,
		service.RecordKeyVault{}, log), nil
}
