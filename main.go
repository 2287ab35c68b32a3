// aw-watcher-ask periodically prompts the user with a dialog box and
// stores every answer in the local ActivityWatch server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/mactep/aw-watcher-ask/internal/config"
	"github.com/mactep/aw-watcher-ask/internal/dispatch"
	"github.com/mactep/aw-watcher-ask/internal/export"
	"github.com/mactep/aw-watcher-ask/internal/models"
	"github.com/mactep/aw-watcher-ask/internal/scheduler"
	"github.com/mactep/aw-watcher-ask/internal/storage"
	"github.com/mactep/aw-watcher-ask/internal/zenity"
)

const version = "0.5.0"

// groupEventType labels the bucket when running in multi-group mode.
const groupEventType = "ask.question"

func main() {
	_ = godotenv.Load() // AW_SERVER_HOST / AW_SERVER_PORT overrides

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "export" {
		runExport(args[1:])
		return
	}
	// `run` is the implicit default command.
	if len(args) > 0 && args[0] == "run" {
		args = args[1:]
	}
	run(args)
}

func run(args []string) {
	flags := flag.NewFlagSet("aw-watcher-ask", flag.ExitOnError)
	var (
		showVersion  = flags.Bool("version", false, "Show program version.")
		verbose      = flags.BoolP("verbose", "v", false, "Enable debug logging output.")
		configPath   = flags.String("config", "", "Path to TOML config file.")
		questionID   = flags.String("question-id", "", "A short string to identify your question in ActivityWatch server records. Only lower-case letters, numbers and dots.")
		questionType = flags.String("question-type", "", "The type of dialog box to present the user.")
		title        = flags.String("title", "", "An optional title for the question.")
		text         = flags.String("text", "", "An optional body text shown in the dialog.")
		schedule     = flags.String("schedule", "", "A cron-tab expression controlling when the user is prompted. Accepts 'R' at the second, minute and hour positions for random times.")
		until        = flags.String("until", "", "Date and time when to stop gathering input.")
		timeout      = flags.Int("timeout", 0, "The amount of seconds to wait for user's input.")
		testing      = flags.Bool("testing", false, "Run the ActivityWatch client in testing mode.")
	)
	_ = flags.Parse(args)

	if *showVersion {
		fmt.Println(version)
		return
	}

	log := newLogger(*verbose)
	defer func() { _ = log.Sync() }()

	// Interruption is a normal way to stop the watcher.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		log.Info("interrupted, stopping watcher")
		_ = log.Sync()
		os.Exit(0)
	}()

	cfg, err := resolveConfig(flags, *configPath, cliOverrides{
		questionID:   *questionID,
		questionType: *questionType,
		title:        *title,
		text:         *text,
		schedule:     *schedule,
		until:        *until,
		timeout:      *timeout,
		testing:      *testing,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	client := storage.New(cfg.Testing)
	log.Infow("client created", "server", client.ServerAddress())

	dispatcher := dispatch.New(zenity.NewCLI(log), log)
	bucketID := client.BucketID()

	if len(cfg.Groups) > 0 {
		if err := client.EnsureBucket(bucketID, groupEventType); err != nil {
			log.Fatalw("cannot set up bucket", "bucket", bucketID, "error", err)
		}
		recorder := storage.NewRecorder(client, bucketID, clock, log)
		err = scheduler.New(dispatcher, recorder, clock, log).RunGroups(cfg.Groups)
	} else {
		q := *cfg.Single
		if !models.IsValidID(q.ID) {
			q.ID = models.FixID(q.ID)
			log.Warnw("an invalid question_id was provided", "fixed_to", q.ID)
		}
		if err := client.EnsureBucket(bucketID, q.ID); err != nil {
			log.Fatalw("cannot set up bucket", "bucket", bucketID, "error", err)
		}
		recorder := storage.NewRecorder(client, bucketID, clock, log)
		err = scheduler.New(dispatcher, recorder, clock, log).RunSingle(q)
	}
	if err != nil {
		log.Fatalw("watcher stopped with an error", "error", err)
	}
}

type cliOverrides struct {
	questionID   string
	questionType string
	title        string
	text         string
	schedule     string
	until        string
	timeout      int
	testing      bool
}

// resolveConfig loads the config file and layers explicitly supplied CLI
// flags over it. When only CLI flags are given (no config file in the
// default location), the single question is built from them alone.
func resolveConfig(flags *flag.FlagSet, path string, o cliOverrides) (*config.Config, error) {
	cliProvided := flags.Changed("question-id") || flags.Changed("question-type")

	var cfg *config.Config
	if flags.Changed("config") || !cliProvided {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		if !flags.Changed("question-id") {
			return nil, config.Error("--question-id is required when not using a config file")
		}
		cfg = &config.Config{Single: &models.SingleQuestion{
			Kind:     models.KindQuestion,
			Schedule: config.DefaultSchedule,
			Timeout:  config.DefaultTimeout,
			Until:    models.FarFuture(),
		}}
	}

	if cfg.Single == nil {
		return cfg, nil // group mode has no CLI override surface
	}
	q := cfg.Single

	if flags.Changed("question-id") {
		q.ID = o.questionID
		if !flags.Changed("title") && q.Title == "" {
			q.Title = o.questionID
		}
	}
	if flags.Changed("question-type") {
		kind, err := config.ParseSingleKind(o.questionType)
		if err != nil {
			return nil, err
		}
		q.Kind = kind
	}
	if flags.Changed("title") {
		q.Title = o.title
	}
	if flags.Changed("text") {
		q.Text = o.text
	}
	if flags.Changed("schedule") {
		q.Schedule = o.schedule
	}
	if flags.Changed("until") {
		t, err := config.ParseUntil(o.until)
		if err != nil {
			return nil, config.Error(err.Error())
		}
		q.Until = t
	}
	if flags.Changed("timeout") {
		q.Timeout = o.timeout
	}
	if flags.Changed("testing") {
		cfg.Testing = o.testing
	}
	if q.Title == "" {
		q.Title = q.ID
	}
	return cfg, nil
}

func runExport(args []string) {
	flags := flag.NewFlagSet("aw-watcher-ask export", flag.ExitOnError)
	var (
		output    = flags.String("output", "aw-watcher-ask.html", "Output HTML file.")
		hostname  = flags.String("hostname", "", "Export the bucket of a specific hostname.")
		serverURL = flags.String("server-url", "", "ActivityWatch server URL (default http://localhost:5600).")
		testing   = flags.Bool("testing", false, "Read from the testing server instead.")
		verbose   = flags.BoolP("verbose", "v", false, "Enable debug logging output.")
	)
	_ = flags.Parse(args)

	log := newLogger(*verbose)
	defer func() { _ = log.Sync() }()

	var opts []storage.Option
	if *serverURL != "" {
		opts = append(opts, storage.WithBaseURL(*serverURL))
	}
	client := storage.New(*testing, opts...)

	buckets, err := client.Buckets()
	if err != nil {
		log.Fatalw("cannot list buckets", "server", client.ServerAddress(), "error", err)
	}
	bucketID, ok := export.FindBucket(buckets, *hostname)
	if !ok {
		log.Fatalw("no aw-watcher-ask bucket found", "server", client.ServerAddress())
	}

	events, err := client.Events(bucketID)
	if err != nil {
		log.Fatalw("cannot read events", "bucket", bucketID, "error", err)
	}
	if err := export.WriteFile(*output, events, bucketID); err != nil {
		log.Fatalw("cannot write visualization", "error", err)
	}
	log.Infow("visualization written", "bucket", bucketID, "events", len(events), "output", *output)
}

func newLogger(verbose bool) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger.Sugar()
}
