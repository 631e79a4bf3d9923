// Package core implements the PSI server's request loop: accept
// a connection, read one encrypted query, evaluate it against the Db, and
// write back the response, closing the connection on any malformed input.
package core

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/drand/labeled-psi/db"
	"github.com/drand/labeled-psi/errs"
	"github.com/drand/labeled-psi/fhe"
	"github.com/drand/labeled-psi/log"
	"github.com/drand/labeled-psi/metrics"
	"github.com/drand/labeled-psi/params"
	"github.com/drand/labeled-psi/powers"
	"github.com/drand/labeled-psi/ps"
	"github.com/drand/labeled-psi/wire"
)

// Server answers PSI queries against one loaded and preprocessed Db.
type Server struct {
	p       params.Params
	fp      fhe.Params
	dataset *db.Db
	eval    *fhe.Evaluator
	enc     *fhe.Encoder
	dag     powers.DAG
	workers int
	log     log.Logger

	lis net.Listener
}

// New builds a Server bound to dataset, evaluating queries with the given
// homomorphic Evaluator/Encoder (built from the server's own evaluation
// key set, ) and the PS power DAG derived from p's source and
// target powers. fp is the BFV parameter set the query's seeded source
// power ciphertexts are expanded against.
func New(p params.Params, fp fhe.Params, dataset *db.Db, eval *fhe.Evaluator, enc *fhe.Encoder, workers int, l log.Logger) (*Server, error) {
	targets := powers.TargetPowers(p.LowDegree, p.Degree)
	dag, err := powers.Build(p.SourcePowers, targets)
	if err != nil {
		return nil, err
	}
	return &Server{p: p, fp: fp, dataset: dataset, eval: eval, enc: enc, dag: dag, workers: workers, log: l}, nil
}

// Listen opens the TCP listener the server will Serve on.
func (s *Server) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	return nil
}

// Addr returns the bound listener's address, valid after Listen.
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Serve runs the accept loop until the listener is closed. Each connection
// is handled in its own goroutine and tagged with a random id for logging.
func (s *Server) Serve() error {
	for {
		conn, err := s.lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Stop closes the listener, causing Serve to return.
func (s *Server) Stop() error {
	if s.lis == nil {
		return nil
	}
	return s.lis.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	id := uuid.New().String()
	clog := s.log.With("conn", id, "remote", conn.RemoteAddr().String())
	defer conn.Close()

	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.QueriesServed.WithLabelValues(outcome).Inc()
		metrics.QueryLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	q, err := wire.ReceiveQuery(conn)
	if err != nil {
		outcome = malformedOutcome(err)
		clog.Warnw("", "event", "receive query failed", "err", err)
		return
	}

	if len(q.Tables) != s.dataset.NumTables() {
		outcome = "malformed"
		clog.Warnw("", "event", "query table count mismatch", "got", len(q.Tables), "want", s.dataset.NumTables())
		return
	}

	expanded, err := expandQueryTables(q.Tables, s.fp)
	if err != nil {
		outcome = "malformed"
		clog.Warnw("", "event", "query ciphertext expansion failed", "err", err)
		return
	}

	evalr := ps.New(s.eval, s.enc, s.dag, s.p.LowDegree, s.p.Degree, s.p.SlotCount, q.One)
	tables, err := s.dataset.HandleQuery(evalr, s.workers, expanded)
	if err != nil {
		outcome = "error"
		clog.Errorw("", "event", "query evaluation failed", "err", err)
		return
	}

	if err := wire.SendResponse(conn, wire.Response{Tables: tables}); err != nil {
		outcome = malformedOutcome(err)
		clog.Warnw("", "event", "send response failed", "err", err)
		return
	}

	clog.Debugw("", "event", "query served", "elapsed", time.Since(start))
}

// expandQueryTables reconstructs every table's per-segment source power
// ciphertexts from their seeded wire form, regenerating each ciphertext's
// uniformly-random half from its transmitted seed.
func expandQueryTables(tables []map[int]map[int]*fhe.SeededCiphertext, fp fhe.Params) ([]map[int]map[int]*rlwe.Ciphertext, error) {
	out := make([]map[int]map[int]*rlwe.Ciphertext, len(tables))
	for t, table := range tables {
		expanded := make(map[int]map[int]*rlwe.Ciphertext, len(table))
		for g, sources := range table {
			expandedSources := make(map[int]*rlwe.Ciphertext, len(sources))
			for power, sc := range sources {
				ct, err := sc.Expand(fp)
				if err != nil {
					return nil, fmt.Errorf("table %d segment %d power %d: %w", t, g, power, err)
				}
				expandedSources[power] = ct
			}
			expanded[g] = expandedSources
		}
		out[t] = expanded
	}
	return out, nil
}

func malformedOutcome(err error) string {
	if errors.Is(err, errs.ErrMalformed) || errors.Is(err, errs.ErrShort) {
		metrics.MalformedConnections.Inc()
		return "malformed"
	}
	if errors.Is(err, io.EOF) {
		return "client_closed"
	}
	return "error"
}
