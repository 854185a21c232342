package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/cbodonnell/evervoid/pkg/auth"
	"github.com/cbodonnell/evervoid/pkg/client"
	clientnetwork "github.com/cbodonnell/evervoid/pkg/client/network"
	gametypes "github.com/cbodonnell/evervoid/pkg/game/types"
	"github.com/cbodonnell/evervoid/pkg/geometry"
	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/messages"
	"github.com/cbodonnell/evervoid/pkg/queue"
	"github.com/cbodonnell/evervoid/pkg/value"
	"github.com/cbodonnell/evervoid/pkg/version"
	"github.com/spf13/cobra"
)

var (
	flagServerAddr string
	flagNickname   string
	flagToken      string
	flagBinary     bool
	flagAPIAddr    string
	flagEmail      string
	flagPassword   string
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Join a match from the terminal",
	Long: `Join a match and play it from the terminal. Commands are read from stdin:

  status                          Show connection and match status
  ships                           List your ships and planets
  move <ship> <x> <y>             Move a ship
  shoot <ship> <target>           Shoot an enemy ship
  bomb <ship> <planet>            Bomb a planet
  build <planet> <building>       Construct a building
  produce <planet> <building> <ship>  Construct a ship
  undo <index>                    Remove a pending action
  pending                         List pending actions
  commit                          End your turn
  chat <text>                     Send a chat message
  state                           Print the local state
  hash                            Print the local state hash
  resync                          Request the full state from the server
  quit                            Leave the match`,
	RunE: runClient,
}

func init() {
	clientCmd.Flags().StringVar(&flagServerAddr, "server", clientnetwork.DefaultServerAddr, "Server websocket address")
	clientCmd.Flags().StringVar(&flagNickname, "nickname", "", "Nickname to join with (required)")
	clientCmd.Flags().StringVar(&flagToken, "token", "", "Identity token for servers that verify nicknames")
	clientCmd.Flags().BoolVar(&flagBinary, "binary", false, "Send compressed binary frames instead of text")
	clientCmd.Flags().StringVar(&flagAPIAddr, "api", "http://localhost:8080", "Server API address used to log in")
	clientCmd.Flags().StringVar(&flagEmail, "email", "", "Log in with this email to obtain a token")
	clientCmd.Flags().StringVar(&flagPassword, "password", "", "Password for --email")
	clientCmd.MarkFlagRequired("nickname")
}

func runClient(cmd *cobra.Command, _ []string) error {
	log.Info("Starting client version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := loadGameData()
	if err != nil {
		return err
	}

	token := flagToken
	if flagEmail != "" {
		login, err := auth.Login(ctx, flagAPIAddr, flagEmail, flagPassword)
		if err != nil {
			return err
		}
		log.Info("Logged in as %s", login.Email)
		token = login.IDToken
	}

	serverMessageQueue := queue.NewInMemoryQueue[*messages.Message](1000)
	networkManager := clientnetwork.NewNetworkManager(clientnetwork.NewNetworkManagerOptions{
		ServerAddr:         flagServerAddr,
		Binary:             flagBinary,
		ServerMessageQueue: serverMessageQueue,
	})
	if err := networkManager.Start(ctx); err != nil {
		return fmt.Errorf("failed to connect: %v", err)
	}
	defer networkManager.Stop()

	engine := client.NewEngine(client.NewEngineOptions{
		GameData: data,
		Nickname: flagNickname,
		Token:    token,
		Sender:   networkManager,
		Inbound:  serverMessageQueue,
	})
	engine.Subscribe(func(step client.Step) {
		fmt.Fprintf(cmd.OutOrStdout(), "[round %d %d/%d] %s\n", step.Round, step.Index+1, step.Total, step.Event.EventType())
	})
	if err := engine.Join(); err != nil {
		return err
	}
	go engine.Start(ctx)

	go func() {
		select {
		case <-ctx.Done():
		case err := <-networkManager.ErrChan():
			var closedByServer *clientnetwork.ErrConnectionClosedByServer
			if errors.As(err, &closedByServer) {
				engine.Disconnect("connection closed by server")
			} else {
				engine.Disconnect(err.Error())
			}
			stop()
		}
	}()

	lines := make(chan string)
	go readLines(os.Stdin, lines)
	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(out, "Disconnected: %s\n", engine.Reason())
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := runClientCommand(out, engine, networkManager, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

func runClientCommand(out io.Writer, engine *client.Engine, networkManager *clientnetwork.NetworkManager, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	args := fields[1:]
	player := engine.Player()

	switch fields[0] {
	case "quit", "exit":
		return true, nil
	case "status":
		info := engine.ServerInfo()
		fmt.Fprintf(out, "status=%s server=%q players=%d round=%d ping=%.0fms\n", engine.Status(), info.Name, info.Players, info.Round, networkManager.Ping())
		if winner := engine.Winner(); winner != "" {
			fmt.Fprintf(out, "winner=%s\n", winner)
		} else if engine.Drawn() {
			fmt.Fprintln(out, "draw")
		}
	case "ships":
		if !engine.View(func(s *gametypes.GameState) {
			for _, e := range s.Entities() {
				if e.Owner != player || e.Kind == gametypes.EntityStar {
					continue
				}
				fmt.Fprintf(out, "%d %s\n", e.ID, describeEntity(e))
			}
		}) {
			return false, client.ErrNotPlaying
		}
	case "systems":
		if !engine.View(func(s *gametypes.GameState) {
			for _, ss := range s.SolarSystems() {
				fmt.Fprintf(out, "system %d at %s\n", ss.ID, ss.Point)
				for _, e := range s.EntitiesIn(ss.ID) {
					if e.Kind == gametypes.EntityPortal {
						fmt.Fprintf(out, "  %d %s\n", e.ID, describeEntity(e))
					}
				}
			}
			for _, w := range s.Wormholes() {
				fmt.Fprintf(out, "wormhole %d: %d <-> %d, %d rounds\n", w.ID, w.Systems[0], w.Systems[1], w.Turns)
			}
		}) {
			return false, client.ErrNotPlaying
		}
	case "move":
		n, err := intArgs(args, 3)
		if err != nil {
			return false, err
		}
		return false, engine.AddAction(gametypes.NewMoveShip(player, n[0], geometry.Point{X: n[1], Y: n[2]}))
	case "shoot":
		n, err := intArgs(args, 2)
		if err != nil {
			return false, err
		}
		return false, engine.AddAction(gametypes.NewShootShip(player, n[0], n[1]))
	case "bomb":
		n, err := intArgs(args, 2)
		if err != nil {
			return false, err
		}
		return false, engine.AddAction(gametypes.NewBombPlanet(player, n[0], n[1]))
	case "jump":
		n, err := intArgs(args, 2)
		if err != nil {
			return false, err
		}
		return false, engine.AddAction(gametypes.NewJumpShip(player, n[0], n[1]))
	case "build":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: build <planet> <building>")
		}
		n, err := intArgs(args[:1], 1)
		if err != nil {
			return false, err
		}
		return false, engine.AddAction(gametypes.NewConstructBuilding(player, n[0], args[1]))
	case "produce":
		if len(args) != 3 {
			return false, fmt.Errorf("usage: produce <planet> <building> <ship>")
		}
		n, err := intArgs(args[:2], 2)
		if err != nil {
			return false, err
		}
		return false, engine.AddAction(gametypes.NewConstructShip(player, n[0], n[1], args[2]))
	case "undo":
		n, err := intArgs(args, 1)
		if err != nil {
			return false, err
		}
		return false, engine.RemoveAction(n[0])
	case "pending":
		for i, a := range engine.PendingActions() {
			fmt.Fprintf(out, "%d: %s\n", i, a)
		}
	case "commit":
		return false, engine.CommitTurn()
	case "chat":
		return false, engine.SendChat(strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
	case "state":
		var text string
		if !engine.View(func(s *gametypes.GameState) { text = value.SerializePretty(s.ToValue()) }) {
			return false, client.ErrNotPlaying
		}
		fmt.Fprintln(out, text)
	case "hash":
		var round int
		var hash value.Digest
		if !engine.View(func(s *gametypes.GameState) { round, hash = s.Round(), s.Hash() }) {
			return false, client.ErrNotPlaying
		}
		fmt.Fprintf(out, "round %d %s\n", round, hash)
	case "resync":
		return false, engine.RequestFullState()
	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
	return false, nil
}

func describeEntity(e *gametypes.Entity) string {
	where := fmt.Sprintf("system %d at (%d,%d)", e.System, e.Location.Origin.X, e.Location.Origin.Y)
	switch {
	case e.InTransit():
		t := e.Ship.Transit
		return fmt.Sprintf("ship %s hp=%d crossing wormhole %d to system %d, %d rounds left", e.Ship.Type, e.Ship.Health, t.Wormhole, t.Destination, t.Remaining)
	case e.Ship != nil:
		return fmt.Sprintf("ship %s hp=%d %s", e.Ship.Type, e.Ship.Health, where)
	case e.Planet != nil:
		return fmt.Sprintf("planet %s hp=%d %s", e.Planet.Type, e.Planet.Health, where)
	case e.Portal != nil:
		return fmt.Sprintf("portal to wormhole %d %s", e.Portal.Wormhole, where)
	}
	return fmt.Sprintf("%s %s", e.Kind, where)
}

func intArgs(args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d numeric arguments, got %d", n, len(args))
	}
	out := make([]int, n)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		out[i] = v
	}
	return out, nil
}
