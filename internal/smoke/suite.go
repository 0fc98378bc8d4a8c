// Package smoke turns benchmarks into one smoke case per story, so that a
// broken story fails on its own instead of taking its benchmark down.
package smoke

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

var (
	// ErrNoBenchmarks is returned by BuildSuite for an empty benchmark list.
	ErrNoBenchmarks = errors.New("no benchmarks to smoke test")
	// ErrNoStories is returned by BuildSuite for a benchmark without stories.
	ErrNoStories = errors.New("benchmark has no stories")
	// ErrStoryNotFound is returned when a SingleStory names a story its
	// benchmark does not have.
	ErrStoryNotFound = errors.New("story not found")
	// ErrSupersededStory is returned by BuildSuite when a story has a newer
	// version and the older one is not disabled.
	ErrSupersededStory = errors.New("story is superseded by a newer version")
)

// Story is one user journey of a benchmark.
type Story struct {
	Name string
	// Local stories are served from disk and need no recorded archive.
	Local bool
}

// Options are the run options of a single smoke case.
type Options struct {
	PagesetRepeat    int
	LoggingVerbosity string
	// MaxNumValues limits the values a single story may produce.
	MaxNumValues int
}

// Benchmark is a runnable set of stories.
type Benchmark interface {
	Name() string
	Stories(ctx context.Context) ([]Story, error)
	// Run runs stories and returns the benchmark's return code: 0 on
	// success, -1 when nothing was run.
	Run(ctx context.Context, stories []Story, opts Options) (int, error)
}

// ArchivePrefetcher is implemented by benchmarks that replay recorded web
// archives. Archives are fetched once up front so that parallel cases do
// not race to download them.
type ArchivePrefetcher interface {
	PrefetchArchives(ctx context.Context, storyNames []string) error
}

// SingleStory restricts a benchmark to one of its stories.
type SingleStory struct {
	Benchmark
	Story string
}

// Stories returns the base benchmark's story named s.Story.
func (s SingleStory) Stories(ctx context.Context) ([]Story, error) {
	all, err := s.Benchmark.Stories(ctx)
	if err != nil {
		return nil, err
	}
	for _, story := range all {
		if story.Name == s.Story {
			return []Story{story}, nil
		}
	}
	return nil, errors.Wrapf(ErrStoryNotFound, "%s/%s", s.Benchmark.Name(), s.Story)
}

// Status is the outcome of a case.
type Status int

const (
	// Pass means the story ran and returned 0.
	Pass Status = iota
	// Skip means the story was not run; Result.Reason says why.
	Skip
	// Fail means the story errored or returned a non-zero code.
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "pass"
	case Skip:
		return "skip"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// Result is the outcome of a case with a human readable reason for
// anything but Pass.
type Result struct {
	Status Status
	Reason string
}

// Env describes where cases run.
type Env struct {
	// Platform overrides Config.Platform when set.
	Platform string
	// BrowserFound reports whether a browser to run stories in exists.
	BrowserFound bool
}

// Case smoke tests one story of one benchmark.
type Case struct {
	// Name is "benchmark/story".
	Name string

	single       SingleStory
	cfg          Config
	maxNumValues int
}

// Discover returns the benchmarks whose name starts with the configured
// prefix.
func Discover(benchmarks []Benchmark, cfg Config) []Benchmark {
	var out []Benchmark
	for _, b := range benchmarks {
		if strings.HasPrefix(b.Name(), cfg.BenchmarkPrefix) {
			out = append(out, b)
		}
	}
	return out
}

// BuildSuite generates one case per story of every benchmark. It prefetches
// archives for the stories that need them, and refuses a suite where a
// story is superseded by a newer version ("name:suffix") unless the older
// one is disabled.
func BuildSuite(ctx context.Context, benchmarks []Benchmark, cfg Config) ([]Case, error) {
	if len(benchmarks) == 0 {
		return nil, ErrNoBenchmarks
	}
	if cfg.MaxNumValues <= 0 {
		cfg.MaxNumValues = DefaultMaxNumValues
	}

	var cases []Case
	for _, b := range benchmarks {
		stories, err := b.Stories(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "list stories of %s", b.Name())
		}
		if len(stories) == 0 {
			return nil, errors.Wrap(ErrNoStories, b.Name())
		}

		if p, ok := b.(ArchivePrefetcher); ok {
			var remote []string
			for _, s := range stories {
				if !s.Local {
					remote = append(remote, s.Name)
				}
			}
			if err := p.PrefetchArchives(ctx, remote); err != nil {
				return nil, errors.Wrapf(err, "prefetch archives of %s", b.Name())
			}
			slog.Debug("prefetched archives", "benchmark", b.Name(), "stories", len(remote))
		}

		// Values are summarized across stories before upload, so one story
		// gets its share of the benchmark's budget.
		perStory := cfg.MaxNumValues / len(stories)
		for _, s := range stories {
			cases = append(cases, Case{
				Name:         b.Name() + "/" + s.Name,
				single:       SingleStory{Benchmark: b, Story: s.Name},
				cfg:          cfg,
				maxNumValues: perStory,
			})
		}
	}

	if err := checkSuperseded(cases, cfg); err != nil {
		return nil, err
	}
	return cases, nil
}

func checkSuperseded(cases []Case, cfg Config) error {
	for i, older := range cases {
		for _, newer := range cases[i+1:] {
			if strings.HasPrefix(newer.Name, older.Name+":") && !cfg.isDisabled(older.Name) {
				return errors.Wrapf(ErrSupersededStory,
					"%q is replaced by %q, disable %q", older.Name, newer.Name, older.Name)
			}
		}
	}
	return nil
}

// Options returns the options the case runs its story with.
func (c Case) Options() Options {
	return Options{
		PagesetRepeat:    1,
		LoggingVerbosity: "non-verbose",
		MaxNumValues:     c.maxNumValues,
	}
}

// Run runs the case's story.
func (c Case) Run(ctx context.Context, env Env) Result {
	platform := env.Platform
	if platform == "" {
		platform = c.cfg.Platform
	}
	if c.cfg.skipsPlatform(platform) {
		return Result{Status: Skip, Reason: fmt.Sprintf("disabled on %s", platform)}
	}
	if !env.BrowserFound {
		return Result{Status: Skip, Reason: "cannot find the browser to run the test"}
	}
	if c.cfg.isDisabled(c.Name) && !c.cfg.RunDisabled {
		return Result{Status: Skip, Reason: "test is explicitly disabled"}
	}

	stories, err := c.single.Stories(ctx)
	if err != nil {
		return Result{Status: Fail, Reason: err.Error()}
	}

	code, err := c.single.Run(ctx, stories, c.Options())
	switch {
	case err != nil:
		return Result{Status: Fail, Reason: errors.Wrapf(err, "run %s", c.Name).Error()}
	case code == -1:
		return Result{Status: Skip, Reason: "the benchmark was not run"}
	case code != 0:
		return Result{Status: Fail, Reason: fmt.Sprintf("failed: %s returned %d", c.single.Name(), code)}
	}
	return Result{Status: Pass}
}

// RunTests runs every case as a subtest of t.
func RunTests(t *testing.T, cases []Case, env Env) {
	t.Helper()
	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			r := c.Run(context.Background(), env)
			switch r.Status {
			case Skip:
				t.Skip(r.Reason)
			case Fail:
				t.Error(r.Reason)
			}
		})
	}
}
