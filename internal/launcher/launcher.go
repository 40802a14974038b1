// Package launcher implements the two execution modes of spec.md §4.8: a
// single-run threaded pipeline (simulation -> publisher -> writer,
// connected by a bounded channel and a pebbe/zmq4 inproc PUB/SUB pair) and
// a parallel-batch mode that fans independent replicate runs out across a
// JekaMas/workerpool pool. Run status transitions flow through
// internal/runstore, the "run-lifecycle surface" the REST layer and CLI
// both call into. Goroutine/channel/sync.WaitGroup shutdown follows the
// teacher's sir_simulation.go Update/Process idiom.
package launcher

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"epidemsim/internal/config"
	"epidemsim/internal/errs"
	"epidemsim/internal/logging"
	"epidemsim/internal/metrics"
	"epidemsim/internal/model"
	"epidemsim/internal/runstore"
	"epidemsim/internal/writer"

	"github.com/JekaMas/workerpool"
	"github.com/pebbe/zmq4"
	"github.com/rs/zerolog"
)

func init() {
	// Agent "custom" overrides decode into map[string]interface{}; gob
	// requires every concrete type that crosses an interface{} boundary
	// to be registered up front.
	gob.Register("")
	gob.Register(float64(0))
	gob.Register(false)
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
}

// joinTimeout bounds how long a worker is given to exit after cancellation
// before it is logged as leaked, per spec.md §5 Cancellation.
const joinTimeout = 5 * time.Second

// Options parameterizes one Launch call.
type Options struct {
	SaveDir   string
	Runs      int
	Overwrite bool
	Seed      int64
}

// Launcher ties Model construction, the pipeline/batch execution paths, and
// the run-lifecycle store together.
type Launcher struct {
	Store *runstore.Store
}

// New builds a Launcher backed by the given run-lifecycle store.
func New(store *runstore.Store) *Launcher {
	return &Launcher{Store: store}
}

// Launch submits a run record, executes it (single-run or batch depending
// on opts.Runs), and transitions the record to SUCCESS or FAILURE. Config
// faults detected before any iteration runs leave no partial output;
// worker faults mid-run leave the run FAILURE with whatever partial
// artifact was written.
func (l *Launcher) Launch(ctx context.Context, runID, name, configPath string, cfg config.Config, opts Options) error {
	if opts.SaveDir == "" {
		return errs.Wrap(errs.ErrBadConfig, "save dir is required")
	}
	if err := os.MkdirAll(opts.SaveDir, 0o755); err != nil {
		return errs.Wrap(errs.ErrWriteFault, "creating save dir %s: %v", opts.SaveDir, err)
	}
	runs := opts.Runs
	if runs < 1 {
		runs = 1
	}

	logPath := filepath.Join(opts.SaveDir, runID+".log")
	log, closeLog, err := logging.New(runID, logPath, zerolog.InfoLevel)
	if err != nil {
		return errs.Wrap(errs.ErrWriteFault, "opening run log: %v", err)
	}
	defer closeLog.Close()

	if _, err := l.Store.Submit(runID, name, configPath, logPath, opts.SaveDir, runs); err != nil {
		return err
	}
	if err := l.Store.Transition(runID, runstore.Running); err != nil {
		return err
	}
	metrics.RunsStarted.Inc()
	log.Info().Int("runs", runs).Str("save_dir", opts.SaveDir).Msg("run starting")

	runErr := l.execute(ctx, log, runID, cfg, opts, runs)

	if runErr != nil {
		metrics.RunsFailed.Inc()
		log.Error().Err(runErr).Msg("run failed")
		if terr := l.Store.Transition(runID, runstore.Failure); terr != nil {
			log.Error().Err(terr).Msg("failed to record FAILURE status")
		}
		return runErr
	}
	metrics.RunsSucceeded.Inc()
	log.Info().Msg("run succeeded")
	return l.Store.Transition(runID, runstore.Success)
}

func (l *Launcher) execute(ctx context.Context, log zerolog.Logger, runID string, cfg config.Config, opts Options, runs int) error {
	if runs <= 1 {
		outPath := filepath.Join(opts.SaveDir, "0.h5")
		if !opts.Overwrite {
			if _, err := os.Stat(outPath); err == nil {
				return errs.Wrap(errs.ErrOutputConflict, "output %s already exists", outPath)
			}
		}
		rng := rand.New(rand.NewSource(opts.Seed))
		return l.singleRun(ctx, log, runID, cfg, outPath, rng)
	}
	return l.batch(ctx, log, runID, cfg, opts.SaveDir, runs, opts.Overwrite, opts.Seed)
}

// finalizePayload is the sentinel message the publisher sends once the
// simulation goroutine has exhausted max_iter: the end-of-run agent_info
// table plus the floor shape the writer needs to reshape the virus
// dataset.
type finalizePayload struct {
	AgentInfo  []writer.AgentInfoRow
	FloorShape [3]int
}

// singleRun drives the three-goroutine pipeline of spec.md §4.8: a
// simulation producer, a publisher that serializes frames over an inproc
// zmq PUB socket, and a writer that subscribes, accumulates, and finalizes
// the HDF5 artifact.
func (l *Launcher) singleRun(parent context.Context, log zerolog.Logger, runID string, cfg config.Config, outPath string, rng *rand.Rand) error {
	m, err := model.New(cfg, rng)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	endpoint := fmt.Sprintf("inproc://epidemsim-%s", runID)

	pub, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return errs.Wrap(errs.ErrWorkerFault, "creating publisher socket: %v", err)
	}
	closePub := closeOnce(pub)
	defer closePub()
	if err := pub.Bind(endpoint); err != nil {
		return errs.Wrap(errs.ErrWorkerFault, "binding publisher socket: %v", err)
	}

	sub, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return errs.Wrap(errs.ErrWorkerFault, "creating subscriber socket: %v", err)
	}
	closeSub := closeOnce(sub)
	defer closeSub()
	if err := sub.Connect(endpoint); err != nil {
		return errs.Wrap(errs.ErrWorkerFault, "connecting subscriber socket: %v", err)
	}
	if err := sub.SetSubscribe(""); err != nil {
		return errs.Wrap(errs.ErrWorkerFault, "subscribing: %v", err)
	}

	queue := make(chan model.Snapshot, 1)
	writerDone := make(chan struct{})

	var simErr, pubErr, writeErr error
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		defer close(queue)
		simErr = l.simulate(ctx, m, runID, queue)
	}()

	go func() {
		defer wg.Done()
		pubErr = publish(ctx, pub, m, queue)
	}()

	go func() {
		defer wg.Done()
		writeErr = consume(ctx, sub, outPath, cfg.Scenario.Sim.SaveVerbose, writerDone)
	}()

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	select {
	case <-allDone:
		// Normal completion: simulation exhausted max_iter, publisher sent
		// the "done" frame, writer finalized and returned.
	case <-writerDone:
		waitTimeout(&wg, joinTimeout)
	case <-parent.Done():
		cancel()
		closePub()
		closeSub()
		if !waitTimeout(&wg, joinTimeout) {
			log.Warn().Str("run_id", runID).Msg("pipeline worker leaked past abort timeout")
		}
	}

	if simErr != nil {
		return errs.Wrap(errs.ErrWorkerFault, "simulation worker: %v", simErr)
	}
	if pubErr != nil {
		return errs.Wrap(errs.ErrWorkerFault, "publisher worker: %v", pubErr)
	}
	if writeErr != nil {
		return errs.Wrap(errs.ErrWriteFault, "writer worker: %v", writeErr)
	}
	return nil
}

// simulate owns the Model and pushes one Snapshot per recorded iteration
// onto queue, blocking when the queue is full so the simulation never
// outruns the publisher, the bounded-channel replacement for the source's
// "push only when empty" polling trick.
func (l *Launcher) simulate(ctx context.Context, m *model.Model, runID string, queue chan<- model.Snapshot) error {
	for i := 0; i < m.Cfg.Scenario.Sim.MaxIter; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := m.Step(); err != nil {
			return err
		}
		metrics.TicksProcessed.Inc()
		metrics.ObserveAgentStatuses(runID, countStatuses(m))
		snap := m.Snapshot(m.Scenario.Now().Unix())
		select {
		case queue <- snap:
			metrics.QueueDepth.WithLabelValues(runID).Set(float64(len(queue)))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// publish drains queue and serializes each frame over the PUB socket with
// a "frame" topic header; on queue closure (simulation finished) it sends
// the terminal "done" frame carrying the agent_info table.
func publish(ctx context.Context, pub *zmq4.Socket, m *model.Model, queue <-chan model.Snapshot) error {
	for {
		select {
		case snap, ok := <-queue:
			if !ok {
				payload, err := encodeGob(finalizePayload{AgentInfo: infoRows(m), FloorShape: floorShape(m)})
				if err != nil {
					return err
				}
				_, err = pub.SendMessage("done", payload)
				return err
			}
			payload, err := encodeGob(snap)
			if err != nil {
				return err
			}
			if _, err := pub.SendMessage("frame", payload); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

// consume subscribes to frames and accumulates them in a Writer, finalizing
// the HDF5 artifact when the "done" sentinel arrives.
func consume(ctx context.Context, sub *zmq4.Socket, outPath string, saveVerbose bool, done chan<- struct{}) error {
	w := writer.New(outPath, saveVerbose)
	for {
		parts, err := sub.RecvMessageBytes(0)
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return err
			}
		}
		if len(parts) != 2 {
			return errs.Wrap(errs.ErrWorkerFault, "malformed pipeline frame with %d parts", len(parts))
		}
		switch string(parts[0]) {
		case "frame":
			var snap model.Snapshot
			if err := decodeGob(parts[1], &snap); err != nil {
				return err
			}
			w.Append(snap.Timestamp, snap.Agents, snap.Virus)
		case "done":
			var fin finalizePayload
			if err := decodeGob(parts[1], &fin); err != nil {
				return err
			}
			err := w.Finalize(fin.AgentInfo, fin.FloorShape)
			close(done)
			return err
		default:
			return errs.Wrap(errs.ErrWorkerFault, "unknown pipeline topic %q", parts[0])
		}
	}
}

// batchParams is the gob-serialized artifact the batch launcher writes
// once: the validated config plus a base seed. Each worker reconstructs an
// independent Model from it rather than sharing any live object, since the
// live Model graph carries unexported rand/clock state that gob cannot
// round-trip; serializing the reproducible construction parameters is the
// behavior-preserving equivalent of "serialize the Model once" for a
// goroutine-based pool (see DESIGN.md).
type batchParams struct {
	Cfg  config.Config
	Seed int64
}

// batch implements spec.md §4.8 parallel-batch mode: gob-encode the shared
// parameters once, fan runs independent jobs out across a bounded worker
// pool, and report FAILURE if any task errors.
func (l *Launcher) batch(ctx context.Context, log zerolog.Logger, runID string, cfg config.Config, saveDir string, runs int, overwrite bool, seed int64) error {
	outPaths := make([]string, runs)
	for i := 0; i < runs; i++ {
		outPaths[i] = filepath.Join(saveDir, fmt.Sprintf("%d.h5", i))
		if !overwrite {
			if _, err := os.Stat(outPaths[i]); err == nil {
				return errs.Wrap(errs.ErrOutputConflict, "output %s already exists", outPaths[i])
			}
		}
	}

	tmp, err := os.CreateTemp("", "epidemsim-batch-*.gob")
	if err != nil {
		return errs.Wrap(errs.ErrWriteFault, "creating batch params file: %v", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if err := encodeBatchParams(tmp, batchParams{Cfg: cfg, Seed: seed}); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.ErrWriteFault, "closing batch params file: %v", err)
	}

	pool := workerpool.New(runs)
	var mu sync.Mutex
	var firstErr error
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		index := i
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			if err := runBatchTask(ctx, runID, tmpPath, index, outPaths[index]); err != nil {
				log.Error().Err(err).Int("run_index", index).Msg("batch task failed")
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	pool.StopWait()
	return firstErr
}

// runBatchTask decodes the shared params file, builds its own Model from
// them, runs the
// direct-write simulation variant to completion, and finalizes its own
// output file. Each replicate's seed is derived from the shared base seed
// and its index so batch runs are embarrassingly parallel yet
// reproducible: the same config, base seed, and run count always produce
// bit-identical per-replicate artifacts.
func runBatchTask(ctx context.Context, runID, paramsPath string, index int, outPath string) error {
	f, err := os.Open(paramsPath)
	if err != nil {
		return errs.Wrap(errs.ErrWorkerFault, "opening batch params: %v", err)
	}
	defer f.Close()
	params, err := decodeBatchParams(f)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(params.Seed + int64(index)))
	m, err := model.New(params.Cfg, rng)
	if err != nil {
		return err
	}

	w := writer.New(outPath, params.Cfg.Scenario.Sim.SaveVerbose)
	for iter := 0; iter < params.Cfg.Scenario.Sim.MaxIter; iter++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := m.Step(); err != nil {
			return err
		}
		metrics.TicksProcessed.Inc()
		snap := m.Snapshot(m.Scenario.Now().Unix())
		w.Append(snap.Timestamp, snap.Agents, snap.Virus)
	}
	return w.Finalize(infoRows(m), floorShape(m))
}

func infoRows(m *model.Model) []writer.AgentInfoRow {
	summaries := m.SummarizeAgents()
	rows := make([]writer.AgentInfoRow, len(summaries))
	for i, s := range summaries {
		rows[i] = writer.NewAgentInfoRow(s.Age, s.Sex, s.LongCovid, s.PreventionIndex, s.Mask, s.Vax, s.Infected, s.Hospitalized, s.Deceased, s.Capacity)
	}
	return rows
}

func floorShape(m *model.Model) [3]int {
	return [3]int{m.Scenario.Shape.H, m.Scenario.Shape.W, m.Scenario.Shape.F}
}

func countStatuses(m *model.Model) map[string]int {
	counts := map[string]int{}
	for _, a := range m.Agents {
		counts[a.Status.String()]++
	}
	return counts
}

func encodeBatchParams(w io.Writer, p batchParams) error {
	if err := gob.NewEncoder(w).Encode(p); err != nil {
		return errs.Wrap(errs.ErrWriteFault, "encoding batch params: %v", err)
	}
	return nil
}

func decodeBatchParams(r io.Reader) (batchParams, error) {
	var p batchParams
	if err := gob.NewDecoder(r).Decode(&p); err != nil {
		return batchParams{}, errs.Wrap(errs.ErrWorkerFault, "decoding batch params: %v", err)
	}
	return p, nil
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errs.Wrap(errs.ErrWorkerFault, "encoding pipeline frame: %v", err)
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return errs.Wrap(errs.ErrWorkerFault, "decoding pipeline frame: %v", err)
	}
	return nil
}

func closeOnce(s *zmq4.Socket) func() {
	var once sync.Once
	return func() { once.Do(func() { _ = s.Close() }) }
}

func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

