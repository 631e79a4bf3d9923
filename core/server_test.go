package core_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drand/labeled-psi/core"
	"github.com/drand/labeled-psi/db"
	"github.com/drand/labeled-psi/fhe"
	"github.com/drand/labeled-psi/log"
	"github.com/drand/labeled-psi/params"
)

func testServer(t *testing.T) (*core.Server, params.Params) {
	p := params.Params{
		NumHashTables:    1,
		TableSize:        16,
		SlotCount:        1 << 13,
		PlaintextModulus: 65537,
		Degree:           6,
		LowDegree:        2,
		SourcePowers:     []int{1, 2},
	}
	require.NoError(t, p.Validate())

	dataset := db.New(p)
	require.NoError(t, dataset.Preprocess())

	fp, err := fhe.NewParams(13, p.PlaintextModulus)
	require.NoError(t, err)
	keys, err := fhe.GenerateKeys(fp, nil)
	require.NoError(t, err)

	eval := fhe.NewEvaluator(fp, keys.EvaluationKeySet())
	enc := fhe.NewEncoder(fp)

	s, err := core.New(p, fp, dataset, eval, enc, 2, log.DefaultLogger())
	require.NoError(t, err)
	return s, p
}

func TestServerLifecycle(t *testing.T) {
	s, _ := testServer(t)
	require.NoError(t, s.Listen("127.0.0.1:0"))
	require.NotEmpty(t, s.Addr())

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()

	require.NoError(t, s.Stop())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}

func TestServerClosesOnMalformedQuery(t *testing.T) {
	s, _ := testServer(t)
	require.NoError(t, s.Listen("127.0.0.1:0"))
	go s.Serve()
	defer s.Stop()

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()
	tcpConn := conn.(*net.TCPConn)

	_, err = tcpConn.Write([]byte{0x01, 0x02})
	require.NoError(t, err)
	require.NoError(t, tcpConn.CloseWrite())

	buf := make([]byte, 16)
	require.NoError(t, tcpConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = tcpConn.Read(buf)
	require.ErrorIs(t, err, io.EOF)
}
