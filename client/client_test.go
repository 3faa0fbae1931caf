package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	whatssend "github.com/ortizmas/whats-send"
	"github.com/ortizmas/whats-send/api"
	brokermem "github.com/ortizmas/whats-send/broker/memory"
	"github.com/ortizmas/whats-send/client"
	"github.com/ortizmas/whats-send/gateway"
	"github.com/ortizmas/whats-send/outcome"
	"github.com/ortizmas/whats-send/registry"
	storemem "github.com/ortizmas/whats-send/store/memory"
)

func newTestGateway(t *testing.T) (*client.Client, *storemem.Store) {
	t.Helper()

	st := storemem.New()
	gw := gateway.New(st, brokermem.New(), whatssend.DefaultConfig())
	srv := httptest.NewServer(api.New(gw).Handler())
	t.Cleanup(srv.Close)

	return client.New(srv.URL, client.WithHTTPClient(srv.Client())), st
}

func heartbeat(t *testing.T, st *storemem.Store, workerID string) {
	t.Helper()
	rec := &registry.Record{Hostname: workerID, StartedAt: time.Now().UTC()}
	if err := st.Heartbeat(context.Background(), workerID, rec, time.Minute); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
}

func TestStartSessionRoundTrip(t *testing.T) {
	c, st := newTestGateway(t)
	heartbeat(t, st, "w1")

	d, err := c.StartSession(context.Background(), "bot1", client.StartOptions{})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if d.Placement == nil || d.Placement.Strategy != gateway.StrategyBalanced {
		t.Errorf("placement = %+v, want balanced", d.Placement)
	}
}

func TestPinnedDeadWorkerMapsToSentinel(t *testing.T) {
	c, _ := newTestGateway(t)

	_, err := c.StartSession(context.Background(), "bot1", client.StartOptions{Hostname: "ghost"})
	if !errors.Is(err, whatssend.ErrWorkerUnavailable) {
		t.Errorf("err = %v, want ErrWorkerUnavailable via the wire", err)
	}
}

func TestSendFallsBackToShared(t *testing.T) {
	c, _ := newTestGateway(t)

	d, err := c.Send(context.Background(), "bot1", "5599", "hi", client.SendOptions{})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if d.Placement.Strategy != gateway.StrategyShared {
		t.Errorf("strategy = %q, want shared", d.Placement.Strategy)
	}
}

func TestWorkersSnapshot(t *testing.T) {
	c, st := newTestGateway(t)
	heartbeat(t, st, "w1")
	heartbeat(t, st, "w2")

	ws, err := c.Workers(context.Background())
	if err != nil {
		t.Fatalf("Workers: %v", err)
	}
	if ws.Replicas != 2 || len(ws.Workers) != 2 {
		t.Errorf("snapshot = %+v, want 2 workers", ws)
	}
}

func TestQRMissReturnsEmpty(t *testing.T) {
	c, st := newTestGateway(t)

	qr, err := c.QR(context.Background(), "bot1")
	if err != nil {
		t.Fatalf("QR on miss: %v", err)
	}
	if qr != "" {
		t.Errorf("qr = %q, want empty on cache miss", qr)
	}

	payload, _ := outcome.QRCode("bot1", "data:image/png;base64,BBBB").Encode()
	if err := st.SetLast(context.Background(), "bot1", outcome.EventQRCode, payload, time.Minute); err != nil {
		t.Fatalf("SetLast: %v", err)
	}

	qr, err = c.QR(context.Background(), "bot1")
	if err != nil {
		t.Fatalf("QR: %v", err)
	}
	if qr != "data:image/png;base64,BBBB" {
		t.Errorf("qr = %q", qr)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	c, st := newTestGateway(t)

	status, err := c.Status(context.Background(), "bot1")
	if err != nil || status != nil {
		t.Fatalf("Status on miss = %v, %v; want nil, nil", status, err)
	}

	payload, _ := outcome.Status("bot1", "w1", "CONNECTED").Encode()
	if err := st.SetLast(context.Background(), "bot1", outcome.EventStatus, payload, time.Minute); err != nil {
		t.Fatalf("SetLast: %v", err)
	}

	status, err = c.Status(context.Background(), "bot1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status["status"] != "CONNECTED" {
		t.Errorf("status = %v", status)
	}
}
