// A terminal watch-party client: joins a room, keeps a simulated player in
// lockstep with the room, and takes playback and chat commands on stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"

	"github.com/watchroom/server/internal/client/engine"
	"github.com/watchroom/server/internal/client/player"
	"github.com/watchroom/server/internal/client/wsclient"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/protocol"
)

func main() {
	fs := pflag.NewFlagSet("client", pflag.ExitOnError)
	serverURL := fs.String("server", "ws://localhost:8080", "Server url (ws:// or wss://)")
	roomId := fs.String("room", "", "Room id to join")
	username := fs.String("username", "", "Display name")
	logLevel := fs.String("log-level", "WARN", "Logging level")
	fs.Parse(os.Args[1:])

	if err := run(*serverURL, *roomId, *username, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(serverURL, roomId, username, logLevel string) error {
	if roomId == "" || username == "" {
		return errors.New("--room and --username are required")
	}

	level := slog.LevelWarn
	if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := wsclient.Dial(ctx, serverURL, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	clock := clockwork.NewRealClock()
	headless := player.NewHeadless(clock, logger)
	go headless.Run(ctx)

	eng := engine.New(headless, client, clock, nil, logger)

	handlers := wsclient.Handlers{
		OnRoomState: func(state protocol.RoomState) {
			fmt.Printf("* room %s: video %s, %s at %.1fs, %d watching\n",
				state.RoomId, state.VideoId, state.State, state.Time, len(state.Members))
			eng.HandleRoomState(state)
		},
		OnSync: eng.HandleSync,
		OnUserJoined: func(delta protocol.MembershipDelta) {
			fmt.Printf("* %s joined (%d watching)\n", delta.Username, len(delta.Members))
		},
		OnUserLeft: func(delta protocol.MembershipDelta) {
			fmt.Printf("* %s left (%d watching)\n", delta.Username, len(delta.Members))
		},
		OnChat: func(message protocol.ChatMessage) {
			fmt.Printf("<%s> %s\n", message.User, message.Message)
		},
		OnSystem: func(notice string) {
			fmt.Println("*", notice)
		},
		OnError: func(message string) {
			fmt.Println("! server:", message)
		},
		OnJoinError: func(message string) {
			fmt.Println("! join failed:", message)
			stop()
		},
	}

	listenErr := make(chan error, 1)
	go func() { listenErr <- client.Listen(ctx, handlers) }()

	if err := client.JoinRoom(roomId, username); err != nil {
		return err
	}

	go commandLoop(ctx, client, headless)

	err = <-listenErr
	if ctx.Err() != nil {
		return nil
	}

	return err
}

func commandLoop(ctx context.Context, client *wsclient.Client, headless *player.Headless) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		command, arg, _ := strings.Cut(line, " ")

		switch command {
		case "":
		case "play":
			// the player notification carries the action to the server
			headless.Play()
		case "pause":
			headless.Pause()
		case "seek":
			seconds, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				fmt.Println("! usage: seek <seconds>")
				continue
			}
			headless.SeekTo(seconds)
			if err := client.EmitAction(domain.VideoAction{Action: domain.ActionSeek, Time: &seconds}); err != nil {
				fmt.Println("!", err)
			}
		case "video":
			videoId, ok := domain.ExtractVideoId(strings.TrimSpace(arg))
			if !ok {
				fmt.Println("! usage: video <id or watch url>")
				continue
			}
			if err := client.EmitAction(domain.VideoAction{Action: domain.ActionChangeVideo, VideoId: videoId}); err != nil {
				fmt.Println("!", err)
			}
		case "say":
			if err := client.SendChat(arg); err != nil {
				fmt.Println("!", err)
			}
		case "status":
			fmt.Printf("* video %s, %s at %.1fs\n",
				headless.VideoId(), headless.State(), headless.CurrentTime())
		case "quit", "exit":
			client.Close()
			return
		default:
			fmt.Println("! commands: play, pause, seek <s>, video <id|url>, say <msg>, status, quit")
		}
	}
}
