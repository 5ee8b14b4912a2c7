package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"gridlink.io/internal/config"
	"gridlink.io/internal/netlink"
	"gridlink.io/internal/protocol"
	"gridlink.io/internal/restapi"
	"gridlink.io/internal/savedgames"
	"gridlink.io/internal/screens"
	"gridlink.io/internal/session"
	"gridlink.io/internal/state"
	"gridlink.io/internal/tasks"
	"gridlink.io/internal/trace"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "path to config.yaml")
		user    = flag.String("user", "", "account user")
		pass    = flag.String("pass", "", "account password")
		game    = flag.String("game", "", "game session id to load (empty: most recent)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[uplink] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *user == "" || *pass == "" {
		logger.Fatalf("-user and -pass are required")
	}

	api, err := restapi.New(cfg.APIBaseURL)
	if err != nil {
		logger.Fatalf("api: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	info, err := api.Login(ctx, *user, *pass)
	cancel()
	if err != nil {
		logger.Fatalf("login: %v", err)
	}

	index, err := savedgames.Open(cfg.DataDir)
	if err != nil {
		logger.Fatalf("saved games: %v", err)
	}
	defer index.Close()

	gameID, err := pickGame(api, index, *game, logger)
	if err != nil {
		logger.Fatalf("load game: %v", err)
	}
	logger.Printf("session %s game %s", info.SessionID, gameID)

	store := state.New(logger)
	link := netlink.New(cfg.ServerWSURL, logger)
	target := &screens.WriterTarget{W: os.Stdout}
	rt := session.New(cfg, logger, store, link, api, screens.TextRenderers(), target)
	defer rt.Close()

	subscribe(store, rt, cfg, logger)

	if err := rt.Start(info.Token, info.SessionID); err != nil {
		// A failed first dial is not fatal; the link retries on its own.
		logger.Printf("initial connect: %v (retrying)", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	lines := make(chan string)
	go readLines(lines)

	for {
		select {
		case <-stop:
			logger.Printf("shutting down")
			return
		case over := <-rt.Ended():
			logger.Printf("GAME OVER: %s %s", over.Reason, over.Detail)
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := command(rt, store, cfg, logger, line); quit {
				return
			}
		}
	}
}

func pickGame(api *restapi.Client, index *savedgames.Index, want string, logger *log.Logger) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	games, err := api.ListGames(ctx)
	if err != nil {
		return "", err
	}
	if err := index.Sync(games); err != nil {
		logger.Printf("saved-games sync: %v", err)
	}
	if want == "" {
		if len(games) == 0 {
			ref, err := api.NewGame(ctx, "new game")
			if err != nil {
				return "", err
			}
			_ = index.Touch(ref)
			return ref.ID, nil
		}
		want = games[0].ID
	}
	if _, err := api.LoadGame(ctx, want); err != nil {
		return "", err
	}
	return want, nil
}

// subscribe prints store changes as they land. These are read-only views;
// all writes go through the runtime's command methods.
func subscribe(store *state.Store, rt *session.Runtime, cfg config.Config, logger *log.Logger) {
	store.On(state.EventLink, func(p any) {
		if up, ok := p.(bool); ok {
			if up {
				logger.Printf("link up")
			} else {
				logger.Printf("link lost, reconnecting")
			}
		}
	})
	store.On(state.EventConnection, func(p any) {
		conn, ok := p.(state.ConnectionState)
		if !ok {
			return
		}
		if conn.Connected {
			logger.Printf("connected to %s via %d hops", conn.TargetAddress, len(conn.Chain))
		} else {
			logger.Printf("connection closed")
		}
	})
	store.On(state.EventTrace, func(p any) {
		conn, ok := p.(state.ConnectionState)
		if !ok {
			return
		}
		logger.Printf("%s", trace.Summary(conn.TraceProgress, conn.TraceActive, len(conn.Chain)))
	})
	store.On(state.EventPlayer, func(p any) {
		pl, ok := p.(state.PlayerSnapshot)
		if !ok {
			return
		}
		logger.Printf("%s | %sc | %s / %s", pl.Handle,
			humanize.Comma(pl.Balance), state.RankName(pl.Rating), state.RankName(pl.CovertRating))
	})
	store.On(state.EventMessages, func(any) {
		logger.Printf("inbox: %d unread", store.UnreadCount())
	})
	rt.Tracker.OnChange(func() {
		for _, row := range rt.Tracker.Rows() {
			logger.Printf("task %d: %s %3.0f%% (%s)", row.ID, tasks.Label(row),
				row.Progress*100, tasks.RemainingText(row, cfg.TickDuration.Std()))
		}
	})
}

func readLines(out chan<- string) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		out <- sc.Text()
	}
	close(out)
}

func command(rt *session.Runtime, store *state.Store, cfg config.Config, logger *log.Logger, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "quit", "exit":
		return true
	case "bounce":
		if len(fields) == 2 {
			rt.AddBounce(fields[1])
		}
	case "unbounce":
		if len(fields) != 2 {
			break
		}
		if strings.HasPrefix(fields[1], "#") {
			if pos, err := strconv.Atoi(fields[1][1:]); err == nil {
				rt.RemoveBounceByPosition(pos)
			}
		} else {
			rt.RemoveBounceByAddress(fields[1])
		}
	case "connect":
		if !rt.ConnectTarget() {
			logger.Printf("need a non-empty chain and no open connection")
		}
	case "disconnect":
		rt.DisconnectTarget()
	case "clear":
		store.ClearChain()
	case "action":
		if len(fields) >= 2 {
			var payload json.RawMessage
			if rest := strings.Join(fields[2:], " "); rest != "" {
				payload = json.RawMessage(rest)
			}
			rt.ScreenAction(fields[1], payload)
		}
	case "run":
		if len(fields) == 4 {
			ver, err := strconv.Atoi(fields[2])
			if err != nil {
				break
			}
			rt.RunTool(fields[1], ver, fields[3], nil)
		}
	case "stop":
		if len(fields) == 2 {
			if id, err := strconv.Atoi(fields[1]); err == nil {
				rt.StopTool(id)
			}
		}
	case "speed":
		if len(fields) == 2 {
			if n, err := strconv.Atoi(fields[1]); err == nil {
				rt.SetSpeed(protocol.Speed(n))
			}
		}
	case "status":
		conn := store.Connection()
		fmt.Printf("link=%v connected=%v target=%q chain=%d unread=%d tick=%d\n",
			store.LinkUp(), conn.Connected, conn.TargetAddress, len(conn.Chain),
			store.UnreadCount(), store.GameTick())
	default:
		fmt.Println("commands: bounce unbounce connect disconnect clear action run stop speed status quit")
	}
	return false
}
