package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/streamledger/internal/consumer"
	"github.com/Iron-Ham/streamledger/internal/dashboard"
	"github.com/Iron-Ham/streamledger/internal/event"
	"github.com/Iron-Ham/streamledger/internal/record"
	"github.com/Iron-Ham/streamledger/internal/stream"
	"github.com/Iron-Ham/streamledger/internal/typerep"
	"github.com/Iron-Ham/streamledger/internal/ui"
)

// jobType is the payload type written by the exercise command.
var jobType = typerep.New("streamledger", "ExerciseJob")

type job struct {
	Seq     int       `json:"seq" yaml:"seq"`
	Created time.Time `json:"created" yaml:"created"`
}

var exerciseCmd = &cobra.Command{
	Use:   "exercise",
	Short: "Put records and drain them with a consumer",
	Long: `Put records into the configured stream, then drain them with a consumer
pool and print what the handling ledger recorded.

Records whose sequence number is a multiple of --fail-every fail on their
first attempt and are retried while consumer.max_retries allows.`,
	RunE: runExercise,
}

func init() {
	rootCmd.AddCommand(exerciseCmd)

	exerciseCmd.Flags().IntP("records", "n", 100, "number of records to put")
	exerciseCmd.Flags().Int("fail-every", 0, "fail the first attempt of every n-th record (0 disables)")
	exerciseCmd.Flags().Int("keep", 0, "retention count per record id; records are put twice when set")
	exerciseCmd.Flags().Bool("dashboard", false, "show a live dashboard while draining (terminals only)")
}

// exerciseOptions are the parsed exercise flags.
type exerciseOptions struct {
	records   int
	failEvery int
	keep      int
	dashboard bool
}

func runExercise(cmd *cobra.Command, args []string) error {
	var opts exerciseOptions
	opts.records, _ = cmd.Flags().GetInt("records")
	opts.failEvery, _ = cmd.Flags().GetInt("fail-every")
	opts.keep, _ = cmd.Flags().GetInt("keep")
	opts.dashboard, _ = cmd.Flags().GetBool("dashboard")
	if opts.records < 1 {
		return fmt.Errorf("--records must be positive")
	}
	if opts.failEvery < 0 || opts.keep < 0 {
		return fmt.Errorf("--fail-every and --keep must not be negative")
	}

	env, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	interactive := opts.dashboard && term.IsTerminal(int(os.Stdout.Fd()))
	return exercise(cmd.Context(), env, opts, cmd.OutOrStdout(), interactive)
}

func exercise(ctx context.Context, env *environment, opts exerciseOptions, out io.Writer, interactive bool) error {
	counts := newEventCounter(env.bus)
	defer counts.Close()

	if err := putJobs(ctx, env, opts); err != nil {
		return err
	}

	runner, err := newRunner(env, opts)
	if err != nil {
		return err
	}

	var summary consumer.Summary
	drain := func(ctx context.Context) (string, error) {
		var err error
		summary, err = runner.Drain(ctx)
		return summary.String(), err
	}

	if interactive {
		err = dashboard.Run(ctx, env.stream, dashboard.DefaultRefresh, out, drain)
	} else {
		_, err = drain(ctx)
	}
	if err != nil {
		return err
	}

	st, err := env.stream.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, ui.RenderStats(st, 32))
	fmt.Fprintln(out, summaryTable(summary))
	fmt.Fprintln(out, counts.Table())
	return nil
}

func putJobs(ctx context.Context, env *environment, opts exerciseOptions) error {
	strategy := record.None
	copies := 1
	if opts.keep > 0 {
		strategy = record.PruneIfFoundByID
		copies = 2
	}

	for c := range copies {
		for i := 1; i <= opts.records; i++ {
			d, err := env.stream.Describe(jobType, job{Seq: i, Created: time.Now()})
			if err != nil {
				return err
			}
			_, err = env.stream.Put(ctx, stream.PutOp{
				Metadata: record.NewMetadata("job-"+strconv.Itoa(i), typerep.Of(""), jobType,
					record.Tag("batch", strconv.Itoa(i%4)),
					record.Tag("copy", strconv.Itoa(c))),
				Payload:                d,
				ExistingRecordStrategy: strategy,
				RetentionCount:         opts.keep,
			})
			if err != nil {
				return err
			}
		}
	}
	env.logger.Info("records written", "records", opts.records, "copies", copies)
	return nil
}

func newRunner(env *environment, opts exerciseOptions) (*consumer.Runner, error) {
	order, err := env.cfg.Handling.OrderBy()
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		attempts = make(map[int64]int)
	)
	handle := func(ctx context.Context, rec record.Record) error {
		var j job
		if err := env.stream.SerializerFactory().Decode(rec.Payload, &j); err != nil {
			return err
		}
		mu.Lock()
		attempts[rec.InternalRecordID]++
		first := attempts[rec.InternalRecordID] == 1
		mu.Unlock()

		if first && opts.failEvery > 0 && j.Seq%opts.failEvery == 0 {
			return fmt.Errorf("job %d: simulated failure", j.Seq)
		}
		return nil
	}

	return consumer.New(env.stream, handle, consumer.Config{
		Concern:           env.cfg.Consumer.Concern,
		Workers:           env.cfg.Consumer.Workers,
		PollInterval:      env.cfg.Consumer.PollInterval,
		MaxRetries:        env.cfg.Consumer.MaxRetries,
		OrderBy:           order,
		InheritRecordTags: env.cfg.Handling.InheritRecordTags,
		Report:            env.cfg.Retry.Policy(env.logger),
	}, consumer.WithLogger(env.logger))
}

func summaryTable(s consumer.Summary) string {
	blocked := "no"
	if s.Blocked {
		blocked = "yes"
	}
	return ui.Table(
		[]string{"Claimed", "Completed", "Failed", "Retried", "Exhausted", "Blocked"},
		[][]string{{
			strconv.Itoa(s.Claimed),
			strconv.Itoa(s.Completed),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Retried),
			strconv.Itoa(s.Exhausted),
			blocked,
		}},
		0,
	)
}

// eventCounter counts bus events by type.
type eventCounter struct {
	bus *event.Bus
	sub string

	mu     sync.Mutex
	counts map[string]int
}

func newEventCounter(bus *event.Bus) *eventCounter {
	c := &eventCounter{bus: bus, counts: make(map[string]int)}
	c.sub = bus.SubscribeAll(func(e event.Event) {
		c.mu.Lock()
		c.counts[e.EventType()]++
		c.mu.Unlock()
	})
	return c
}

// Count returns how many events of type t were seen.
func (c *eventCounter) Count(t string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[t]
}

func (c *eventCounter) Table() string {
	c.mu.Lock()
	types := make([]string, 0, len(c.counts))
	for t := range c.counts {
		types = append(types, t)
	}
	slices.Sort(types)
	rows := make([][]string, 0, len(types))
	for _, t := range types {
		rows = append(rows, []string{t, strconv.Itoa(c.counts[t])})
	}
	c.mu.Unlock()
	return ui.Table([]string{"Event", "Count"}, rows, 0)
}

func (c *eventCounter) Close() {
	c.bus.Unsubscribe(c.sub)
}
