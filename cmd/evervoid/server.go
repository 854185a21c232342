package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbodonnell/evervoid/pkg/api"
	authhandlers "github.com/cbodonnell/evervoid/pkg/auth/handlers"
	authproviders "github.com/cbodonnell/evervoid/pkg/auth/providers"
	"github.com/cbodonnell/evervoid/pkg/config"
	"github.com/cbodonnell/evervoid/pkg/game"
	gametypes "github.com/cbodonnell/evervoid/pkg/game/types"
	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/messages"
	"github.com/cbodonnell/evervoid/pkg/network"
	"github.com/cbodonnell/evervoid/pkg/queue"
	"github.com/cbodonnell/evervoid/pkg/repositories"
	"github.com/cbodonnell/evervoid/pkg/savegame"
	"github.com/cbodonnell/evervoid/pkg/state"
	"github.com/cbodonnell/evervoid/pkg/version"
	"github.com/cbodonnell/evervoid/pkg/workers"
	"github.com/spf13/cobra"
)

var (
	flagName         string
	flagPort         int
	flagAPIPort      int
	flagMatchSize    int
	flagSeed         int64
	flagLoad         string
	flagAutosave     string
	flagSaveInterval time.Duration
	flagRatePerSec   float64
	flagRateBurst    int
	flagTLSCert      string
	flagTLSKey       string
)

const shutdownGracePeriod = 250 * time.Millisecond

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Host a match",
	Long: `Host a match. The match starts once --match-size players have joined.

Environment:
  EVERVOID_DATABASE_URL         postgres:// or sqlite:// URL for stored games
  EVERVOID_FIREBASE_PROJECT_ID  verify handshake tokens with Firebase
  EVERVOID_FIREBASE_API_KEY     API key for the Firebase project

Examples:
  evervoid server
  evervoid server --match-size 3 --autosave autosave.evs.zst
  evervoid server --load autosave.evs.zst`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().StringVar(&flagName, "name", "EverVoid", "Server name shown to clients")
	serverCmd.Flags().IntVar(&flagPort, "port", 8888, "Websocket port to listen on")
	serverCmd.Flags().IntVar(&flagAPIPort, "api-port", 8080, "HTTP API port (0 disables the API)")
	serverCmd.Flags().IntVar(&flagMatchSize, "match-size", 2, "Players needed to start the match")
	serverCmd.Flags().Int64Var(&flagSeed, "seed", 0, "Match seed (0 = random)")
	serverCmd.Flags().StringVar(&flagLoad, "load", "", "Resume the match in a save file")
	serverCmd.Flags().StringVar(&flagAutosave, "autosave", "", "Save file rewritten while the match runs")
	serverCmd.Flags().DurationVar(&flagSaveInterval, "save-interval", 10*time.Second, "Autosave interval")
	serverCmd.Flags().Float64Var(&flagRatePerSec, "rate", 20, "Messages per second allowed per client (0 = unlimited)")
	serverCmd.Flags().IntVar(&flagRateBurst, "burst", 40, "Message burst allowed per client")
	serverCmd.Flags().StringVar(&flagTLSCert, "tls-cert", "", "TLS certificate file")
	serverCmd.Flags().StringVar(&flagTLSKey, "tls-key", "", "TLS key file")
}

func runServer(cmd *cobra.Command, _ []string) error {
	log.Info("Starting server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := loadGameData()
	if err != nil {
		return err
	}

	var initialState *gametypes.GameState
	if flagLoad != "" {
		if initialState, err = savegame.Load(flagLoad, data); err != nil {
			return err
		}
		log.Info("Resuming match at round %d from %s", initialState.Round(), flagLoad)
	}

	authProvider, err := newAuthProvider(ctx)
	if err != nil {
		return err
	}

	var repository repositories.Repository
	if databaseURL := config.Getenv(config.EnvDatabaseURL, ""); databaseURL != "" {
		if repository, err = repositories.NewRepository(ctx, databaseURL); err != nil {
			return fmt.Errorf("failed to open repository: %v", err)
		}
		defer repository.Close(context.Background())
	}

	var tlsConfig *network.TLSConfig
	if flagTLSCert != "" {
		tlsConfig = &network.TLSConfig{CertFile: flagTLSCert, KeyFile: flagTLSKey}
	}

	clientMessageQueue := queue.NewInMemoryQueue[*messages.Message](10000)
	connectionEventQueue := queue.NewInMemoryQueue[network.ConnectionEvent](1000)
	clientManager := network.NewClientManager(network.RateLimit{PerSecond: flagRatePerSec, Burst: flagRateBurst})
	networkManager := network.NewNetworkManager(network.NewNetworkManagerOptions{
		AuthProvider:  authProvider,
		ClientManager: clientManager,
		MessageQueue:  clientMessageQueue,
		WSPort:        flagPort,
		WSServerTLS:   tlsConfig,
	})
	// the transport outlives ctx so the shutdown notice can be delivered
	transportCtx, stopTransport := context.WithCancel(context.Background())
	defer stopTransport()
	networkManager.Start(transportCtx)

	go workers.NewConnectionEventWorker(workers.NewConnectionEventWorkerOptions{
		ConnectionEventChan:  clientManager.GetConnectionEventChan(),
		ConnectionEventQueue: connectionEventQueue,
	}).Start(transportCtx)

	sink := workers.NewChannelSink(0)
	sink.OnDrop(func(b workers.BroadcastMessage) {
		// a dropped broadcast is detected by clients as a round gap and
		// resynced; a dropped reply leaves only the session to reset
		if b.ClientID == "" {
			return
		}
		go func() {
			if err := networkManager.CloseClient(b.ClientID, "outbound queue full"); err != nil {
				log.Warn("Failed to close client %s: %v", b.ClientID, err)
			}
		}()
	})
	go workers.NewBroadcastMessageWorker(workers.NewBroadcastMessageWorkerOptions{
		Sender:               networkManager,
		BroadcastMessageChan: sink.Chan(),
	}).Start(transportCtx)

	snapshotStore := state.NewInMemorySnapshotStore()
	saveDone := make(chan struct{})
	if repository != nil || flagAutosave != "" {
		saveGameStateWorker := workers.NewSaveGameStateWorker(workers.NewSaveGameStateWorkerOptions{
			Repository:    repository,
			SnapshotStore: snapshotStore,
			SavePath:      flagAutosave,
			Interval:      flagSaveInterval,
		})
		go func() {
			defer close(saveDone)
			saveGameStateWorker.Start(ctx)
		}()
	} else {
		close(saveDone)
	}

	if flagAPIPort != 0 {
		var apiTLS *api.TLSConfig
		if tlsConfig != nil {
			apiTLS = &api.TLSConfig{CertFile: tlsConfig.CertFile, KeyFile: tlsConfig.KeyFile}
		}
		var authHandler authhandlers.AuthHandler
		if apiKey := config.Getenv(config.EnvFirebaseAPIKey, ""); apiKey != "" {
			authHandler = authhandlers.NewFirebaseAuthHandler(authhandlers.NewFirebaseAuthHandlerOptions{APIKey: apiKey})
		}
		apiServer := api.NewAPIServer(api.NewAPIServerOptions{
			Port:          flagAPIPort,
			TLS:           apiTLS,
			AuthProvider:  authProvider,
			AuthHandler:   authHandler,
			SnapshotStore: snapshotStore,
			Repository:    repository,
		})
		go apiServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := apiServer.Stop(shutdownCtx); err != nil {
				log.Error("Failed to stop API server: %v", err)
			}
		}()
	}

	gameManager := game.NewGameManager(game.NewGameManagerOptions{
		Name:                 flagName,
		GameData:             data,
		Seed:                 flagSeed,
		MatchSize:            flagMatchSize,
		ClientMessageQueue:   clientMessageQueue,
		ConnectionEventQueue: connectionEventQueue,
		Sink:                 sink,
		SnapshotStore:        snapshotStore,
		GameLoopInterval:     50 * time.Millisecond,
		InitialState:         initialState,
	})

	log.Info("Starting game manager")
	if err := gameManager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start game manager: %v", err)
	}

	log.Info("Shutting down")
	gameManager.Stop()
	time.Sleep(shutdownGracePeriod)
	stopTransport()
	<-saveDone
	return nil
}

func newAuthProvider(ctx context.Context) (authproviders.AuthProvider, error) {
	projectID := config.Getenv(config.EnvFirebaseProjectID, "")
	if projectID == "" {
		log.Info("No Firebase project configured, nicknames are not verified")
		return authproviders.NewNoopAuthProvider(), nil
	}
	provider, err := authproviders.NewFirebaseAuthProvider(ctx, projectID, config.Getenv(config.EnvFirebaseAPIKey, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Firebase auth provider: %v", err)
	}
	return provider, nil
}
