package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/soloassist/soloassist-go/internal/auth"
	"github.com/soloassist/soloassist-go/internal/capture"
	"github.com/soloassist/soloassist-go/internal/config"
	"github.com/soloassist/soloassist-go/internal/interaction"
	"github.com/soloassist/soloassist-go/internal/logger"
	"github.com/soloassist/soloassist-go/internal/playback"
	"github.com/soloassist/soloassist-go/internal/session"
	"github.com/soloassist/soloassist-go/internal/store"
	"github.com/soloassist/soloassist-go/internal/title"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		return
	}
	logger.SetLevel(cfg.Log.Level)

	conversations := store.NewSQLiteStore(cfg.Store.Path)
	defer conversations.Close()

	deps := session.Deps{
		Interactor: interaction.NewClient(cfg.Server.BaseURL, nil),
		Titler:     title.NewGenerator(cfg.Server.BaseURL, nil),
		Store:      conversations,
	}
	if cfg.Auth.BaseURL != "" {
		deps.Auth = auth.NewClient(cfg.Auth.BaseURL, cfg.Auth.AnonKey, nil)
	}
	if cfg.Capture.Command != "" {
		recorder := capture.NewSession(&capture.ExecDevice{
			Command: cfg.Capture.Command,
			Args:    cfg.Capture.Args,
		}, cfg.Capture.MIME)
		deps.Recorder = recorder
	}
	if cfg.Playback.Command != "" {
		deps.Player = &playback.ExecPlayer{
			Command: cfg.Playback.Command,
			Args:    cfg.Playback.Args,
		}
		deps.AudioReply = cfg.Playback.On()
	}

	sess := session.New(deps)
	defer sess.Close()

	ctx := context.Background()
	fmt.Println("soloassist: type a message, or /help for commands")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, cfg, sess, scanner, line); quit {
				break
			}
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, cfg.Timeout.Send)
		err := sess.SendUserInput(sendCtx, line)
		cancel()
		if err != nil {
			logger.L.Warn("send failed", "error", err)
		}
		printTail(sess)
	}
}

// runCommand handles one slash command; it returns true to exit the loop.
func runCommand(ctx context.Context, cfg *config.Config, sess *session.Session, scanner *bufio.Scanner, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Println("/new /list /open <id> /rename <title> /record /audio /signin <email> <password> /signup <email> <password> /signout /quit")
	case "/new":
		if err := sess.NewConversation(); err != nil {
			fmt.Println("error:", err)
		}
	case "/list":
		summaries, err := sess.ListConversations(ctx)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		for _, s := range summaries {
			fmt.Printf("%s  %s  (%s)\n", s.ID, s.Title, s.CreatedAt.Format("2006-01-02 15:04"))
		}
	case "/open":
		if len(fields) < 2 {
			fmt.Println("usage: /open <id>")
			return false
		}
		if err := sess.SelectConversation(ctx, fields[1]); err != nil {
			fmt.Println("error:", err)
			return false
		}
		for _, m := range sess.Messages() {
			fmt.Printf("[%s] %s\n", m.Sender, m.Text)
		}
	case "/rename":
		if len(fields) < 2 {
			fmt.Println("usage: /rename <title>")
			return false
		}
		if err := sess.RenameConversation(ctx, strings.Join(fields[1:], " ")); err != nil {
			fmt.Println("error:", err)
		}
	case "/record":
		if sess.State() == session.StateUnauthenticated {
			fmt.Println("sign in first")
			return false
		}
		if err := sess.StartRecording(ctx); err != nil {
			fmt.Println("error:", err)
			return false
		}
		fmt.Println("recording... press enter to stop")
		scanner.Scan()
		sendCtx, cancel := context.WithTimeout(ctx, cfg.Timeout.Send)
		err := sess.StopAndSend(sendCtx)
		cancel()
		if err != nil {
			logger.L.Warn("voice send failed", "error", err)
		}
		printTail(sess)
	case "/audio":
		sess.SetAudioReply(!sess.AudioReply())
		if sess.AudioReply() {
			fmt.Println("spoken replies on")
		} else {
			fmt.Println("spoken replies off")
		}
	case "/signin":
		if len(fields) < 3 {
			fmt.Println("usage: /signin <email> <password>")
			return false
		}
		if err := sess.SignIn(ctx, fields[1], fields[2]); err != nil {
			fmt.Println("error:", err)
		}
	case "/signup":
		if len(fields) < 3 {
			fmt.Println("usage: /signup <email> <password>")
			return false
		}
		if err := sess.SignUp(ctx, fields[1], fields[2]); err != nil {
			fmt.Println("error:", err)
		}
	case "/signout":
		if err := sess.SignOut(ctx); err != nil {
			fmt.Println("error:", err)
		}
	default:
		fmt.Println("unknown command:", fields[0])
	}
	return false
}

// printTail shows the messages appended by the latest exchange.
func printTail(sess *session.Session) {
	msgs := sess.Messages()
	n := 2
	if len(msgs) < n {
		n = len(msgs)
	}
	for _, m := range msgs[len(msgs)-n:] {
		fmt.Printf("[%s] %s\n", m.Sender, m.Text)
	}
}
