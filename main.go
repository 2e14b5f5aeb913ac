// Command vodchat is the desktop companion's core: it tracks followed Twitch
// streamers and downloads VOD chat comments, via the Helix API or an
// external browser-automation scraper. It:
//   - Loads configuration (settings.json + env) and initializes structured logging.
//   - Opens the local SQLite store and runs idempotent migrations.
//   - Dispatches one of the subcommands: status, register, remove, videos,
//     download, cleanup.
//
// The graphical shell drives the same packages; this entrypoint is the
// scriptable surface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/vodchat/chat"
	"github.com/onnwee/vodchat/config"
	"github.com/onnwee/vodchat/db"
	"github.com/onnwee/vodchat/telemetry"
	"github.com/onnwee/vodchat/tracker"
	"github.com/onnwee/vodchat/twitchapi"
	"github.com/onnwee/vodchat/videocache"
)

func main() {
	// Load .env file if present (local dev convenience only)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		slog.Error("startup blocked", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.EnsureDirs(); err != nil {
		slog.Error("failed to create data dirs", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	telemetry.Serve(cfg.MetricsAddr)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := db.Migrate(ctx, database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}

	tokens := &twitchapi.TokenStore{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		CachePath:    cfg.TokenCachePath,
	}
	client := &twitchapi.Client{Tokens: tokens, ClientID: cfg.ClientID}
	svc := &tracker.Service{DB: database, Client: client}
	videos := &videocache.Store{Dir: cfg.CacheDir}
	downloader := &chat.Downloader{
		Client:   client,
		DB:       database,
		Ingestor: &chat.Ingestor{ScraperPath: cfg.ScraperPath},
		Dir:      cfg.DownloadDir,
	}

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	if err := run(ctx, args, svc, client, videos, downloader); err != nil {
		slog.Error("command failed", slog.String("command", args[0]), slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, svc *tracker.Service, client *twitchapi.Client, videos *videocache.Store, downloader *chat.Downloader) error {
	switch args[0] {
	case "status":
		return cmdStatus(ctx, svc)
	case "register":
		if len(args) < 2 {
			return fmt.Errorf("usage: vodchat register <query>")
		}
		return cmdRegister(ctx, svc, client, strings.Join(args[1:], " "))
	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("usage: vodchat remove <user-id>")
		}
		return svc.Remove(ctx, args[1])
	case "videos":
		if len(args) != 2 {
			return fmt.Errorf("usage: vodchat videos <user-id>")
		}
		return cmdVideos(ctx, client, videos, args[1])
	case "download":
		rest := args[1:]
		scrape := len(rest) > 0 && rest[0] == "-scrape"
		if scrape {
			rest = rest[1:]
		}
		if len(rest) != 2 {
			return fmt.Errorf("usage: vodchat download [-scrape] <user-id> <video-url>")
		}
		return cmdDownload(ctx, client, videos, downloader, rest[0], rest[1], scrape)
	case "cleanup":
		n, err := downloader.CleanupOldFiles(30)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d old comment files\n", n)
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func cmdStatus(ctx context.Context, svc *tracker.Service) error {
	overview, err := svc.Overview(ctx)
	if err != nil {
		return err
	}
	for _, st := range overview {
		if st.Live {
			fmt.Printf("%s\tLIVE\t%s\t%s\n", st.User.DisplayName, st.StreamTitle, st.GameName)
			continue
		}
		last := ""
		if !st.LastStreamedAt.IsZero() {
			last = st.LastStreamedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%s\toffline\t%s\t%s\n", st.User.DisplayName, st.LastTitle, last)
	}
	return nil
}

func cmdRegister(ctx context.Context, svc *tracker.Service, client *twitchapi.Client, query string) error {
	channels, err := client.SearchChannels(ctx, query)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		return fmt.Errorf("no channels match %q", query)
	}
	// Exact login match wins; otherwise take the first result, which is how
	// the shell's search dialog preselects.
	pick := channels[0]
	for _, ch := range channels {
		if strings.EqualFold(ch.Login, query) {
			pick = ch
			break
		}
	}
	if err := svc.Register(ctx, pick); err != nil {
		return err
	}
	fmt.Printf("registered %s (%s)\n", pick.DisplayName, pick.ID)
	return nil
}

func cmdVideos(ctx context.Context, client *twitchapi.Client, videos *videocache.Store, userID string) error {
	fetched, err := client.GetVideos(ctx, userID, 20)
	if err != nil {
		return err
	}
	merged, err := videos.Reconcile(userID, fetched)
	if err != nil {
		return err
	}
	for _, v := range merged {
		mark := "available"
		if !v.Available {
			mark = "unavailable"
		}
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n", v.CreatedAt.Local().Format("2006-01-02 15:04"), v.Duration, mark, v.Title, v.URL)
	}
	return nil
}

func cmdDownload(ctx context.Context, client *twitchapi.Client, videos *videocache.Store, downloader *chat.Downloader, userID, videoURL string, scrape bool) error {
	fetched, err := client.GetVideos(ctx, userID, 20)
	if err != nil {
		return err
	}
	merged, err := videos.Reconcile(userID, fetched)
	if err != nil {
		return err
	}
	var target *videocache.CachedVideo
	for i := range merged {
		if merged[i].URL == videoURL {
			target = &merged[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %s", twitchapi.ErrVideoNotFound, videoURL)
	}

	if scrape {
		stored, skipped, err := downloader.FromScraper(ctx, userID, *target)
		if err != nil {
			return err
		}
		fmt.Printf("stored %d comments (%d malformed rows skipped)\n", stored, skipped)
		return nil
	}
	stored, err := downloader.FromAPI(ctx, userID, *target, func(p int) {
		fmt.Printf("\rdownloading comments: %3d%%", p)
	})
	if err != nil {
		fmt.Println()
		return err
	}
	fmt.Printf("\nstored %d comments\n", stored)
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: vodchat <command>

commands:
  status                                  followed streamer overview
  register <query>                        search channels and register
  remove <user-id>                        remove a registered streamer
  videos <user-id>                        list cached+fresh videos
  download [-scrape] <user-id> <url>      download a video's comments
  cleanup                                 delete comment files older than 30 days`)
}
