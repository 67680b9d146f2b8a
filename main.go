package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"nord/internal/channels"
	"nord/internal/config"
	"nord/internal/content"
	"nord/internal/identity"
	"nord/internal/models"
	"nord/internal/rest"
	"nord/internal/storage"
	"nord/internal/store"
	"nord/internal/transport"
	"nord/internal/upload"

	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context) error {
	username := flag.String("username", "", "Override the generated username for this install")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	user, err := identity.GetOrCreate(db)
	if err != nil {
		return err
	}
	if *username != "" && *username != user.Username {
		if err := content.ValidateUsername(*username); err != nil {
			return err
		}
		user.Username = *username
		if err := identity.Update(db, user); err != nil {
			return err
		}
	}

	channelStore, err := channels.NewStore(db)
	if err != nil {
		return err
	}

	apiClient := rest.NewClient(cfg.APIBaseURL)

	opts := store.Options{
		API:       apiClient,
		Poller:    rest.NewPoller(apiClient, cfg.PollInterval),
		Uploads:   upload.NewCoordinator(cfg.APIBaseURL),
		Cache:     db,
		UseSocket: cfg.UseSocket,
		TypingTTL: cfg.TypingQuiet,
	}
	if cfg.UseSocket {
		opts.Socket = transport.NewClient(cfg.SocketURL)
	}
	sess := store.New(ctx, opts)

	connectCtx, cancelConnect := context.WithTimeout(ctx, cfg.ConnectTimeout)
	err = sess.Connect(connectCtx, user)
	cancelConnect()
	if err != nil {
		return err
	}
	defer sess.Disconnect()

	state := sess.State()
	log.Printf("Connected as %s via %s transport", user.Username, state.Transport)

	active := channelStore.Active()
	if err := sess.JoinChannel(ctx, active.ID); err != nil {
		log.Printf("Failed to load #%s: %v", active.Name, err)
	}
	fmt.Printf("#%s> ", active.Name)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return renderLoop(gCtx, sess, channelStore)
	})

	g.Go(func() error {
		return inputLoop(gCtx, sess, channelStore, cfg)
	})

	return g.Wait()
}

// renderLoop prints messages as the store changes, the poor man's
// reactive subscription.
func renderLoop(ctx context.Context, sess *store.Store, channelStore *channels.Store) error {
	updates := sess.Subscribe()
	printed := make(map[string]int)

	for {
		select {
		case <-updates:
			active := channelStore.Active()
			messages := sess.ChannelMessages(active.ID)
			for _, msg := range pending(messages, printed[active.ID]) {
				printMessage(msg)
			}
			printed[active.ID] = len(messages)

			if typing := sess.TypingUsers(active.ID); len(typing) > 0 {
				names := make([]string, len(typing))
				for i, u := range typing {
					names[i] = u.Username
				}
				fmt.Printf("(%s typing...)\n", strings.Join(names, ", "))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pending returns the suffix not yet printed. The saved index can
// exceed the list length after a local delete or a smaller snapshot
// replacing a cached history; it clamps instead of slicing past the end.
func pending(messages []models.Message, printed int) []models.Message {
	if printed > len(messages) {
		printed = len(messages)
	}
	return messages[printed:]
}

func printMessage(msg models.Message) {
	body := content.Sanitize(msg.Content)
	if msg.File != nil {
		fmt.Printf("[%s] %s: %s (attachment: %s)\n", msg.Timestamp, msg.Username, body, msg.File.Filename)
		return
	}
	fmt.Printf("[%s] %s: %s\n", msg.Timestamp, msg.Username, body)
}

func inputLoop(ctx context.Context, sess *store.Store, channelStore *channels.Store, cfg *config.Config) error {
	emitter := store.NewTypingEmitter(sess, cfg.TypingQuiet)
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		active := channelStore.Active()

		switch {
		case line == "/quit":
			return context.Canceled
		case line == "/channels":
			for _, ch := range channelStore.List() {
				marker := " "
				if ch.ID == active.ID {
					marker = "*"
				}
				fmt.Printf("%s #%s — %s\n", marker, ch.Name, ch.Description)
			}
		case strings.HasPrefix(line, "/join "):
			name := strings.TrimSpace(strings.TrimPrefix(line, "/join "))
			joinByName(ctx, sess, channelStore, name)
		case strings.HasPrefix(line, "/upload "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/upload "))
			sendFile(ctx, sess, active.ID, path)
		default:
			emitter.Keystroke(active.ID)
			draft := models.MessageDraft{Content: line, Type: models.MessageTypeText}
			if err := sess.SendMessage(ctx, active.ID, draft); err != nil {
				log.Printf("Send failed: %v", err)
			}
			emitter.Flush(active.ID)
		}
		fmt.Printf("#%s> ", channelStore.Active().Name)
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return context.Canceled
}

func joinByName(ctx context.Context, sess *store.Store, channelStore *channels.Store, name string) {
	for _, ch := range channelStore.List() {
		if ch.Name != name {
			continue
		}
		previous := channelStore.Active()
		sess.LeaveChannel(previous.ID)
		channelStore.SetActive(ch.ID)
		if err := sess.JoinChannel(ctx, ch.ID); err != nil {
			log.Printf("Failed to load #%s: %v", ch.Name, err)
		}
		return
	}
	log.Printf("No such channel: %s", name)
}

func sendFile(ctx context.Context, sess *store.Store, channelID, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("Upload failed: %v", err)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		log.Printf("Upload failed: %v", err)
		return
	}

	ref, err := sess.UploadFile(ctx, upload.File{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Content: f,
	}, channelID)
	if err != nil {
		log.Printf("Upload failed: %v", err)
		return
	}

	draft := models.MessageDraft{
		Content: ref.Filename,
		Type:    models.MessageTypeFile,
		File:    &ref,
	}
	if err := sess.SendMessage(ctx, channelID, draft); err != nil {
		log.Printf("Send failed after upload: %v", err)
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
