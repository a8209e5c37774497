package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"swar/internal/audio"
	"swar/internal/auth"
	"swar/internal/config"
	"swar/internal/dialog"
	"swar/internal/identity"
	"swar/internal/ipc"
	"swar/internal/mail"
	"swar/internal/nlu"
	"swar/internal/notify"
	"swar/internal/proxy"
	"swar/internal/speech"
	"swar/internal/tts"
	"swar/internal/ui"
	"swar/internal/voice"
	"swar/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// Words the recognizer should expect.
const vocabulary = "Inbox, Sent, Drafts, Trash, Settings, compose, open email, read, delete, summarize, reply with option, yes, no, cancel, stop, logout."

const loginRetry = 3 * time.Second

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address for the OpenAI client")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	facePath := cli.StringP("face", "f", "frame.jpg", "Camera frame the login reads")
	replay := cli.StringP("replay", "r", "", "Replay recorded clips (directory or comma list) instead of the microphone")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	if err := godotenv.Load(*envFile); err != nil {
		log.Warn("No env file loaded", "path", *envFile, "err", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		remote    nlu.Remote
		assistant dialog.Assistant
	)
	if cfg.HasAI() {
		httpClient, err := proxy.NewSocksClient(*proxyAddr)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
			os.Exit(1)
		}

		opts := []option.RequestOption{
			option.WithAPIKey(cfg.OpenAIKey),
			option.WithHTTPClient(httpClient),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
		}
		ai := nlu.NewOpenAI(openai.NewClient(opts...), cfg.OpenAIModel)
		remote, assistant = ai, ai
		log.Debug("Loaded OpenAI client")
	} else {
		log.Warn("OPENAI_API_KEY not set, using local rules only")
	}
	classifier := nlu.NewClassifier(remote)

	whisper, err := stt.NewTranscriber(cfg.WhisperModel, stt.Options{
		Language:      cfg.WhisperLanguage,
		InitialPrompt: vocabulary,
	})
	if err != nil {
		log.Error("Failed to init whisper", "err", err)
		os.Exit(1)
	}
	defer whisper.Close()

	log.Debug("Loaded whisper")

	listener, cleanup, err := buildListener(cfg, whisper, *replay)
	if err != nil {
		log.Error("Failed to init audio input", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	injector := speech.NewInjector(listener, 8)

	engine, err := tts.NewEngine(cfg.TTSCommand, cfg.TTSVoice, cfg.TTSRate)
	if err != nil {
		log.Error("Failed to find synthesizer", "cmd", cfg.TTSCommand, "err", err)
		os.Exit(1)
	}
	if cfg.DuckOthers {
		engine.WithDucker(audio.NewDucker([]string{"espeak-ng", "espeak"}, cfg.DuckFactor, 10))
	}
	channel := speech.Duplex{Synthesizer: engine, Listener: injector}

	users, err := identity.Open(cfg.UsersDB, identity.HistogramMatcher{}, cfg.FaceThreshold)
	if err != nil {
		log.Error("Failed to open user directory", "err", err)
		os.Exit(1)
	}
	defer users.Close()

	store := mail.NewRemote(mail.Server{
		IMAPHost: cfg.IMAPHost,
		IMAPPort: cfg.IMAPPort,
		SMTPHost: cfg.SMTPHost,
		SMTPPort: cfg.SMTPPort,
	})

	pub := &statusPublisher{}
	if cfg.UIBusURL != "" {
		feed := ui.NewFeed(cfg.UIBusURL, 2*time.Second)
		go feed.Run(ctx)
		pub.next = feed
	}

	var current atomic.Pointer[dialog.Narrator]

	ln, err := ipc.StartServer(cfg.CtlSocket, func(msg ipc.ControlMessage) (string, error) {
		switch msg.Cmd {
		case ipc.CmdSay:
			if msg.Text == "" {
				return "", errors.New("nothing to say")
			}
			if !injector.Inject(msg.Text) {
				return "", errors.New("input queue full")
			}
			return "queued", nil
		case ipc.CmdStop:
			if n := current.Load(); n != nil {
				n.Stop()
			}
			return "stopped", nil
		case ipc.CmdStatus:
			return pub.status(), nil
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return "", fmt.Errorf("unknown command %q", msg.Cmd)
		}
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer ln.Close()

	log.Info("Boot up - successful")

	for ctx.Err() == nil {
		chat := dialog.NewChatLog(dialog.ChatLogSize)
		greeter := dialog.NewNarrator(channel, chat)
		current.Store(greeter)
		pub.set("logged out")

		user, err := auth.Login(ctx, auth.Options{
			Directory: users,
			Camera:    identity.FileCamera{Path: *facePath},
			Speaker:   greeter,
			Listener:  injector,
			Chat:      chat,
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if !errors.Is(err, auth.ErrUnknownFace) && !errors.Is(err, auth.ErrCancelled) && !errors.Is(err, auth.ErrTooManyAttempts) {
				log.Error("Login failed", "err", err)
			}
			sleep(ctx, loginRetry)
			continue
		}

		sess := dialog.NewSession(classifier, channel, store, dialog.Options{
			User:       user.Name,
			Account:    user.Mail,
			FetchLimit: cfg.FetchLimit,
			Assistant:  assistant,
			Publisher:  pub,
		})
		current.Store(sess.Narrator())

		if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("Session ended with error", "user", user.Email, "err", err)
		}
		log.Info("Session closed", "user", user.Email)
	}

	if n := current.Load(); n != nil {
		n.Stop()
	}
	log.Info("Shutting down")
}

// buildListener wires either the microphone or the replay clips to the
// recognizer.
func buildListener(cfg *config.Config, tr *stt.Transcriber, replay string) (speech.Listener, func(), error) {
	if replay != "" {
		r, err := voice.NewReplay(tr, replay)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Replaying clips instead of the microphone", "source", replay)
		return r, func() {}, nil
	}

	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		return nil, nil, err
	}

	var cue voice.Cue
	if c, err := notify.NewCue(cfg.BeepPath); err != nil {
		log.Warn("Listening cue disabled", "path", cfg.BeepPath, "err", err)
	} else {
		cue = c
	}

	log.Debug("Loaded recorder")
	return voice.NewMic(rec, tr, cue), rec.Close, nil
}

// statusPublisher keeps a one line status for swar-ctl and forwards
// snapshots to the UI feed.
type statusPublisher struct {
	line atomic.Value
	next dialog.Publisher
}

func (p *statusPublisher) Publish(s dialog.Snapshot) {
	line := fmt.Sprintf("user=%s folder=%s mode=%s emails=%d", s.User, s.Folder, s.Mode, len(s.Emails))
	if s.Stage != "" {
		line += " stage=" + string(s.Stage)
	}
	p.set(line)
	if p.next != nil {
		p.next.Publish(s)
	}
}

func (p *statusPublisher) set(line string) { p.line.Store(line) }

func (p *statusPublisher) status() string {
	if s, ok := p.line.Load().(string); ok {
		return s
	}
	return "booting"
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
