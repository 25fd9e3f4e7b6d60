/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/quizduel/games/duel"
)

type Config struct {
	bind           string
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool

	duelTime     int
	passPenalty  int
	maxPasses    int
	settleDelay  time.Duration
	hintDelay    time.Duration
	passDebounce time.Duration
	winDisplay   time.Duration
	voicePass    bool
	languages    []string
	categories   string
	boardSize    int

	sttProvider string
	sttURL      string
	sttToken    string

	snapshotFile string
	databaseURL  string

	mqttBroker string
	mqttTopic  string
}

const (
	sttWebSocket = "websocket"
	sttDeepgram  = "deepgram"
)

// Recognition is limited to these language families.
var supportedLanguages = []string{"pl", "en"}

func supportedLanguage(tag string) bool {
	base, _, _ := strings.Cut(strings.ToLower(tag), "-")
	for _, l := range supportedLanguages {
		if base == l {
			return true
		}
	}
	return false
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.boardSize < 1 || c.boardSize > 64 {
		return fmt.Errorf("invalid board size (must be between 1-64 inclusive): %d", c.boardSize)
	}
	if len(c.languages) < 1 || len(c.languages) > 2 {
		return fmt.Errorf("between one and two languages must be provided, got %d", len(c.languages))
	}
	for _, l := range c.languages {
		if !supportedLanguage(l) {
			return fmt.Errorf("unsupported language %q (supported: %s)", l, strings.Join(supportedLanguages, ", "))
		}
	}
	switch c.sttProvider {
	case sttWebSocket:
	case sttDeepgram:
		if c.sttToken == "" {
			return errors.New("--stt-token is required when --stt-provider is deepgram")
		}
	default:
		return fmt.Errorf("unknown speech provider %q (supported: %s, %s)", c.sttProvider, sttWebSocket, sttDeepgram)
	}
	if c.snapshotFile != "" && c.databaseURL != "" {
		return errors.New("only one of --snapshot-file and --database-url may be provided")
	}
	if c.mqttBroker != "" && strings.Trim(c.mqttTopic, "/") == "" {
		return errors.New("--mqtt-topic must not be empty when --mqtt-broker is set")
	}

	return c.duelConfig().Validate()
}

func (c *Config) duelConfig() duel.Config {
	d := duel.DefaultConfig()

	d.DuelTime = c.duelTime
	d.PassPenalty = c.passPenalty
	d.MaxPasses = c.maxPasses
	d.SettleDelay = c.settleDelay
	d.HintDelay = c.hintDelay
	d.PassDebounce = c.passDebounce
	d.WinDisplay = c.winDisplay
	d.VoicePass = c.voicePass

	return d
}

// recognitionLanguages returns the stream languages for a category mode.
func (c *Config) recognitionLanguages(mode duel.LanguageMode) []string {
	if mode == duel.ModeDual && len(c.languages) > 1 {
		return c.languages[:2]
	}
	return c.languages[:1]
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIZDUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quizduel",
		Short:         "A head-to-head picture quiz with voice answers, served as a webapp.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	defaults := duel.DefaultConfig()

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUIZDUEL_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: QUIZDUEL_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: QUIZDUEL_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: QUIZDUEL_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are ended (env: QUIZDUEL_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: QUIZDUEL_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: QUIZDUEL_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: QUIZDUEL_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: QUIZDUEL_VERSION)")

	fs.IntVar(&cfg.duelTime, "duel-time", defaults.DuelTime, "starting seconds on each player's clock (env: QUIZDUEL_DUEL_TIME)")
	fs.IntVar(&cfg.passPenalty, "pass-penalty", defaults.PassPenalty, "seconds taken from the active player per pass (env: QUIZDUEL_PASS_PENALTY)")
	fs.IntVar(&cfg.maxPasses, "max-passes", defaults.MaxPasses, "passes allowed per duel before forfeit, 0 for unlimited (env: QUIZDUEL_MAX_PASSES)")
	fs.DurationVar(&cfg.settleDelay, "settle-delay", defaults.SettleDelay, "feedback display after a correct answer or pass (env: QUIZDUEL_SETTLE_DELAY)")
	fs.DurationVar(&cfg.hintDelay, "hint-delay", defaults.HintDelay, "time before the answer hint is shown, 0 to disable (env: QUIZDUEL_HINT_DELAY)")
	fs.DurationVar(&cfg.passDebounce, "pass-debounce", defaults.PassDebounce, "confirmation delay for a spoken pass (env: QUIZDUEL_PASS_DEBOUNCE)")
	fs.DurationVar(&cfg.winDisplay, "win-display", defaults.WinDisplay, "time the result is shown before the duel closes (env: QUIZDUEL_WIN_DISPLAY)")
	fs.BoolVar(&cfg.voicePass, "voice-pass", defaults.VoicePass, "accept a spoken pass (env: QUIZDUEL_VOICE_PASS)")
	fs.StringSliceVar(&cfg.languages, "languages", []string{"pl-PL", "en-US"}, "recognition languages, the second is used by dual-language categories (env: QUIZDUEL_LANGUAGES)")
	fs.StringVar(&cfg.categories, "categories", "", "path to a yaml file of question categories (env: QUIZDUEL_CATEGORIES)")
	fs.IntVar(&cfg.boardSize, "board-size", 9, "number of tiles on the board (env: QUIZDUEL_BOARD_SIZE)")

	fs.StringVar(&cfg.sttProvider, "stt-provider", sttWebSocket, "speech recognizer backend, websocket or deepgram (env: QUIZDUEL_STT_PROVIDER)")
	fs.StringVar(&cfg.sttURL, "stt-url", "", "websocket url of a streaming speech recognizer, or the deepgram host (env: QUIZDUEL_STT_URL)")
	fs.StringVar(&cfg.sttToken, "stt-token", "", "token sent to the speech recognizer (env: QUIZDUEL_STT_TOKEN)")

	fs.StringVar(&cfg.snapshotFile, "snapshot-file", "", "path to a json file used to persist rooms (env: QUIZDUEL_SNAPSHOT_FILE)")
	fs.StringVar(&cfg.databaseURL, "database-url", "", "postgres connection string used to persist rooms (env: QUIZDUEL_DATABASE_URL)")

	fs.StringVar(&cfg.mqttBroker, "mqtt-broker", "", "mqtt broker to publish sound cues to (env: QUIZDUEL_MQTT_BROKER)")
	fs.StringVar(&cfg.mqttTopic, "mqtt-topic", "quizduel", "topic prefix for published cues (env: QUIZDUEL_MQTT_TOPIC)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quizduel v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
