package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/streamledger/internal/event"
	"github.com/Iron-Ham/streamledger/internal/mutex"
	"github.com/Iron-Ham/streamledger/internal/ui"
)

var mutexCmd = &cobra.Command{
	Use:   "mutex",
	Short: "Contend for a ledger-backed mutex",
	Long: `Run several contenders that repeatedly acquire and release one mutex
stored in the configured stream, then report how often each held it and
how long it waited. At most one contender may hold the mutex at a time.`,
	RunE: runMutex,
}

func init() {
	rootCmd.AddCommand(mutexCmd)

	mutexCmd.Flags().String("id", "demo", "mutex id")
	mutexCmd.Flags().Int("contenders", 4, "number of concurrent contenders")
	mutexCmd.Flags().Int("rounds", 10, "acquisitions per contender")
	mutexCmd.Flags().Duration("hold", 2*time.Millisecond, "how long each acquisition is held")
}

// mutexOptions are the parsed mutex flags.
type mutexOptions struct {
	id         string
	contenders int
	rounds     int
	hold       time.Duration
}

// contenderStats is what one contender observed.
type contenderStats struct {
	acquired int
	waited   time.Duration
}

func runMutex(cmd *cobra.Command, args []string) error {
	var opts mutexOptions
	opts.id, _ = cmd.Flags().GetString("id")
	opts.contenders, _ = cmd.Flags().GetInt("contenders")
	opts.rounds, _ = cmd.Flags().GetInt("rounds")
	opts.hold, _ = cmd.Flags().GetDuration("hold")
	if opts.contenders < 1 || opts.rounds < 1 {
		return fmt.Errorf("--contenders and --rounds must be positive")
	}

	env, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	return contend(cmd.Context(), env, opts, cmd.OutOrStdout())
}

func contend(ctx context.Context, env *environment, opts mutexOptions, out io.Writer) error {
	m, err := mutex.New(ctx, env.stream, opts.id,
		mutex.WithConcern(env.cfg.Mutex.Concern),
		mutex.WithPollingInterval(env.cfg.Mutex.PollingInterval),
		mutex.WithBus(env.bus),
		mutex.WithLogger(env.logger),
	)
	if err != nil {
		return err
	}

	var attempts atomic.Int64
	sub := env.bus.Subscribe(event.TypeMutexAcquired, func(e event.Event) {
		if acquired, ok := e.(event.MutexAcquiredEvent); ok {
			attempts.Add(int64(acquired.Attempts))
		}
	})
	defer env.bus.Unsubscribe(sub)

	var (
		holders  atomic.Int32
		maxHeld  atomic.Int32
		mu       sync.Mutex
		observed = make([]contenderStats, opts.contenders)
	)

	start := time.Now()
	p := pool.New().WithContext(ctx).WithCancelOnError()
	for c := range opts.contenders {
		p.Go(func(ctx context.Context) error {
			details := "contender " + strconv.Itoa(c)
			for range opts.rounds {
				began := time.Now()
				token, err := m.WaitOne(ctx, details)
				if err != nil {
					return err
				}
				waited := time.Since(began)

				n := holders.Add(1)
				for {
					cur := maxHeld.Load()
					if n <= cur || maxHeld.CompareAndSwap(cur, n) {
						break
					}
				}
				time.Sleep(opts.hold)
				holders.Add(-1)

				if err := m.Release(ctx, token); err != nil {
					return err
				}

				mu.Lock()
				observed[c].acquired++
				observed[c].waited += waited
				mu.Unlock()
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	rows := make([][]string, 0, len(observed))
	for c, s := range observed {
		avg := time.Duration(0)
		if s.acquired > 0 {
			avg = s.waited / time.Duration(s.acquired)
		}
		rows = append(rows, []string{
			"contender " + strconv.Itoa(c),
			strconv.Itoa(s.acquired),
			avg.Round(time.Microsecond).String(),
		})
	}

	fmt.Fprintln(out, ui.Title.Render("mutex "+m.ID()))
	fmt.Fprintln(out, ui.Table([]string{"Contender", "Acquired", "Avg wait"}, rows, 0))
	fmt.Fprintf(out, "acquisitions: %d  claim attempts: %d  elapsed: %s\n",
		opts.contenders*opts.rounds, attempts.Load(), elapsed.Round(time.Millisecond))

	held := maxHeld.Load()
	line := fmt.Sprintf("max concurrent holders: %d", held)
	if held > 1 {
		fmt.Fprintln(out, ui.Error.Render(line))
		return fmt.Errorf("mutual exclusion violated: %d holders", held)
	}
	fmt.Fprintln(out, ui.Secondary.Render(line))
	return nil
}
