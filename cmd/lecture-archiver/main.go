package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/lecture-archiver"
	"github.com/alanbriolat/lecture-archiver/async"
	"github.com/alanbriolat/lecture-archiver/download"
	"github.com/alanbriolat/lecture-archiver/generic"
	"github.com/alanbriolat/lecture-archiver/internal/api"
	"github.com/alanbriolat/lecture-archiver/internal/classroom"
	"github.com/alanbriolat/lecture-archiver/internal/cookies"
	"github.com/alanbriolat/lecture-archiver/internal/journal"
	"github.com/alanbriolat/lecture-archiver/internal/media"
	"github.com/alanbriolat/lecture-archiver/internal/network"
	"github.com/alanbriolat/lecture-archiver/internal/syllabus"
)

const envPrefix = "LECTURE_ARCHIVER_"

func env(name string) []string {
	return []string{envPrefix + name}
}

func main() {
	// Values in .env become defaults for the flags below; a missing file is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("can't load .env: %v", err)
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	config := zap.NewDevelopmentConfig()
	config.Level = level
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := config.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = lecture_archiver.WithLogger(ctx, logger)

	app := &cli.App{
		Name:      "lecture-archiver",
		Usage:     "download every recording of a lecture-capture section or lesson",
		ArgsUsage: "[URL...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "target",
				Value:   lecture_archiver.DefaultTargetDir,
				Usage:   "save downloaded files under `DIR`",
				EnvVars: env("TARGET"),
			},
			&cli.StringFlag{
				Name:    "cookies",
				Value:   "cookies.txt",
				Usage:   "read session cookies from Netscape cookie `FILE`",
				EnvVars: env("COOKIES"),
			},
			&cli.BoolFlag{
				Name:    "experimental",
				Aliases: []string{"x"},
				Usage:   "extract stream manifests from the classroom page and download them with yt-dlp",
				EnvVars: env("EXPERIMENTAL"),
			},
			&cli.IntFlag{
				Name:    "skip",
				Usage:   "skip the first `N` lessons of a section",
				EnvVars: env("SKIP"),
			},
			&cli.BoolFlag{
				Name:    "sd",
				Usage:   "download the lower resolution of each video",
				EnvVars: env("SD"),
			},
			&cli.BoolFlag{
				Name:    "hd",
				Value:   true,
				Usage:   "download the higher resolution of each video",
				EnvVars: env("HD"),
			},
			&cli.BoolFlag{
				Name:    "audio",
				Usage:   "download audio-only files",
				EnvVars: env("AUDIO"),
			},
			&cli.StringFlag{
				Name:    "lesson-dir",
				Value:   lecture_archiver.DefaultLessonDirTemplate,
				Usage:   "name each lesson's directory with `TEMPLATE` (fields: .Number, .LessonID)",
				EnvVars: env("LESSON_DIR"),
			},
			&cli.StringFlag{
				Name:    "journal",
				Usage:   "record completed downloads in `FILE` (default: {target}/.lecture-archiver.db)",
				EnvVars: env("JOURNAL"),
			},
			&cli.BoolFlag{
				Name:    "no-journal",
				Usage:   "don't record completed downloads",
				EnvVars: env("NO_JOURNAL"),
			},
			&cli.StringFlag{
				Name:    "yt-dlp",
				Value:   download.DefaultYtDlpPath,
				Usage:   "yt-dlp executable `PATH`",
				EnvVars: env("YT_DLP"),
			},
			&cli.StringFlag{
				Name:    "proxy",
				Usage:   "connect through SOCKS5 proxy at `ADDR` (host:port)",
				EnvVars: env("PROXY"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "give up on each request after `DURATION` (default: no limit)",
				EnvVars: env("TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:    "fail-fast",
				Usage:   "stop at the first lesson that fails",
				EnvVars: env("FAIL_FAST"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log debug messages",
				EnvVars: env("VERBOSE"),
			},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("verbose") {
				level.SetLevel(zapcore.DebugLevel)
			}
			sources := c.Args().Slice()
			if len(sources) == 0 {
				match, err := prompt(ctx, os.Stdin, os.Stdout)
				if err != nil {
					return err
				}
				return archive(ctx, c, match)
			}
			matches, err := matchAll(sources)
			if err != nil {
				return err
			}
			for _, match := range matches {
				if err := archive(ctx, c, match); err != nil {
					return err
				}
			}
			return nil
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
		if err != nil {
			logger.Fatal(err.Error())
		}
	case <-ctx.Done():
		stop()
		err = <-result
		if err != nil {
			logger.Fatal(err.Error())
		}
	}
}

// matchAll classifies every URL before anything is downloaded. All of them must share the origin of the first.
func matchAll(sources []string) ([]*lecture_archiver.Match, error) {
	var matches []*lecture_archiver.Match
	for _, source := range sources {
		match, err := lecture_archiver.DefaultProviderRegistry.Match(source)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		if len(matches) > 0 && match.Origin != matches[0].Origin {
			return nil, fmt.Errorf("%s: %w: expected origin %s, got %s", source, lecture_archiver.ErrInvalidURL, matches[0].Origin, match.Origin)
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// prompt asks for a URL until one is recognised.
func prompt(ctx context.Context, in io.Reader, out io.Writer) (*lecture_archiver.Match, error) {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "Enter URL: ")
		var line generic.Result[string]
		select {
		case line = <-async.RunResult(func() (string, error) { return reader.ReadString('\n') }):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		s, err := line.Parts()
		if err != nil && (err != io.EOF || strings.TrimSpace(s) == "") {
			return nil, fmt.Errorf("no URL entered: %w", err)
		}
		match, matchErr := lecture_archiver.DefaultProviderRegistry.Match(s)
		if matchErr == nil {
			return match, nil
		}
		zap.S().Debug(matchErr)
		fmt.Fprintln(out, "Invalid URL, it should look like one of:")
		for _, example := range lecture_archiver.DefaultProviderRegistry.Examples() {
			fmt.Fprintf(out, "    https://echo360.net.au%s\n", example)
		}
		if err != nil {
			return nil, fmt.Errorf("no URL entered: %w", err)
		}
	}
}

func archive(ctx context.Context, c *cli.Context, match *lecture_archiver.Match) error {
	logger := lecture_archiver.Logger(ctx).Sugar()
	logger.Infof("Archiving %v from %s", match.Target, match.Origin)

	cookiesFile := c.String("cookies")
	jar, err := cookies.ReadFile(cookiesFile)
	if err != nil {
		return err
	}
	values, err := jar.ForOrigin(string(match.Origin))
	if err != nil {
		return err
	}
	httpClient, err := network.NewClient(network.ClientOptions{
		ProxyAddr: c.String("proxy"),
		Timeout:   c.Duration("timeout"),
	})
	if err != nil {
		return err
	}
	client := api.NewClient(string(match.Origin), values, httpClient)

	downloadConfig, err := lecture_archiver.NewDownloadConfig().WithLessonDirTemplate(c.String("lesson-dir"))
	if err != nil {
		return err
	}
	downloadConfig.TargetDir = c.String("target")

	archiver := &lecture_archiver.Archiver{
		Lessons:  syllabus.NewResolver(client),
		Config:   downloadConfig,
		Skip:     c.Int("skip"),
		FailFast: c.Bool("fail-fast"),
	}
	if c.Bool("experimental") {
		archiver.Resolver = classroom.NewExtractor(client)
		archiver.Transferer = download.NewYtDlpTransferer(c.String("yt-dlp"), cookiesFile)
	} else {
		archiver.Resolver = media.NewResolver(client, media.Policy{
			IncludeSD:    c.Bool("sd"),
			IncludeHD:    c.Bool("hd"),
			IncludeAudio: c.Bool("audio"),
		})
		archiver.Transferer = download.NewHTTPTransferer(client, download.WithProgressCallback(progressBar))
	}

	if !c.Bool("no-journal") {
		path := c.String("journal")
		if path == "" {
			if err := os.MkdirAll(downloadConfig.TargetDir, download.DefaultDirPermissions); err != nil {
				return err
			}
			path = filepath.Join(downloadConfig.TargetDir, ".lecture-archiver.db")
		}
		j, err := journal.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open journal %s: %w", path, err)
		}
		defer j.Close()
		archiver.Journal = j
	}

	summary, err := archiver.Run(ctx, match.Target)
	report(logger, summary)
	if err != nil {
		return err
	}
	if summary.AllFailed() {
		return fmt.Errorf("every lesson failed: %w", summary.Err())
	}
	logger.Info("Downloads finished!")
	return nil
}

func progressBar(item download.Item) download.ProgressCallback {
	bar := progressbar.DefaultBytes(-1, item.Filename)
	return func(downloaded int, expected int) {
		if expected <= 0 {
			expected = -1
		}
		if bar.GetMax() != expected {
			bar.ChangeMax(expected)
		}
		generic.Unwrap_(bar.Set(downloaded))
	}
}

func report(logger *zap.SugaredLogger, summary *lecture_archiver.Summary) {
	if summary == nil || len(summary.Lessons) == 0 {
		return
	}
	completed := summary.Completed()
	failed := summary.Failed()
	logger.Infof("%d of %d lessons archived", len(completed), len(summary.Lessons))
	for _, l := range completed {
		logger.Debugf("    %s: %d files in %s (%d already present)", l.Label, len(l.Items), l.Dir, l.Skipped)
	}
	for _, l := range failed {
		logger.Errorf("    %s: %v", l.Label, l.Err)
	}
}
