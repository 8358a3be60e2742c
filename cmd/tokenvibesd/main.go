// Command tokenvibesd runs the TokenVibes sale-ledger daemon.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/baileyhollabaugh/tokenvibes/config"
	"github.com/baileyhollabaugh/tokenvibes/core"
	"github.com/baileyhollabaugh/tokenvibes/events"
	"github.com/baileyhollabaugh/tokenvibes/indexer"
	"github.com/baileyhollabaugh/tokenvibes/journal"
	"github.com/baileyhollabaugh/tokenvibes/ledger"
	"github.com/baileyhollabaugh/tokenvibes/rpc"
	"github.com/baileyhollabaugh/tokenvibes/storage"
	"github.com/baileyhollabaugh/tokenvibes/wallet"

	// Import ledger modules to trigger their init() self-registration.
	_ "github.com/baileyhollabaugh/tokenvibes/ledger/modules/sale"
	_ "github.com/baileyhollabaugh/tokenvibes/ledger/modules/token"
)

// genesisMarkerKey records that genesis grants were applied, so a
// restart does not double-credit.
const genesisMarkerKey = "genesis:applied"

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "tokenvibes.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new key and exit")
	flag.Parse()

	// Secrets come from the environment, never from CLI flags.
	password := os.Getenv("TOKENVIBES_PASSWORD")
	rpcToken := os.Getenv("TOKENVIBES_RPC_TOKEN")

	// ---- generate key mode ----
	if *genKey {
		if password == "" {
			fmt.Fprintln(os.Stderr, "WARNING: TOKENVIBES_PASSWORD not set, keystore will use an empty password")
		}
		w, err := wallet.Generate()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("Generated key. Address: %s\n", w.PubKey())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	// ---- load config ----
	cfg, err := loadConfig(*cfgPath, logger)
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	// ---- open DB ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Fatal("mkdir data dir", zap.Error(err))
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/ledger")
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	state := storage.NewStateDB(db)

	// ---- journal ----
	jrnl, err := journal.Open(db)
	if err != nil {
		logger.Fatal("journal", zap.Error(err))
	}

	// ---- genesis grants (first boot only) ----
	if _, err := db.Get([]byte(genesisMarkerKey)); errors.Is(err, core.ErrNotFound) {
		if err := config.ApplyGenesis(state, cfg.Genesis, time.Now().UnixNano()); err != nil {
			logger.Fatal("genesis", zap.Error(err))
		}
		if err := db.Set([]byte(genesisMarkerKey), []byte("1")); err != nil {
			logger.Fatal("genesis marker", zap.Error(err))
		}
		logger.Info("genesis grants applied", zap.Int("tokens", len(cfg.Genesis.Tokens)))
	} else if err != nil {
		logger.Fatal("genesis marker", zap.Error(err))
	}

	// ---- events + indexer ----
	emitter := events.NewEmitter(logger)
	idx := indexer.New(db, emitter)

	// ---- ledger host ----
	led := ledger.New(cfg.Genesis.ChainID, state, jrnl, emitter, logger)

	// ---- TLS ----
	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		logger.Fatal("tls", zap.Error(err))
	}
	if tlsCfg != nil {
		logger.Info("TLS enabled for RPC")
	}

	// ---- RPC ----
	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rpcHandler := rpc.NewHandler(led, state, jrnl, idx)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, rpcToken, tlsCfg, logger)
	if err := rpcServer.Start(); err != nil {
		logger.Fatal("rpc start", zap.Error(err))
	}
	defer rpcServer.Stop()
	logger.Info("RPC listening",
		zap.String("addr", rpcAddr),
		zap.String("chain_id", cfg.Genesis.ChainID),
		zap.Uint64("seq", jrnl.Seq()),
		zap.Bool("auth", rpcToken != ""))

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")
	// Deferred calls run in LIFO: rpcServer.Stop → db.Close
}

func loadConfig(path string, logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("config file not found, using defaults", zap.String("path", path))
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
