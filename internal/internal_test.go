package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestDescribe(t *testing.T) {
	cmd := mongo.CommandError{Code: 13, Name: "Unauthorized", Message: "command currentOp requires authentication"}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("connection refused"), "connection refused"},
		{"command error", cmd, "command currentOp requires authentication"},
		{"wrapped command error", fmt.Errorf("probe: %w", cmd), "command currentOp requires authentication"},
		{"command error without message", mongo.CommandError{Code: 1, Name: "X"}, mongo.CommandError{Code: 1, Name: "X"}.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.err); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorFormatString(t *testing.T) {
	e := ErrorFormat{Target: "mongodb://h:1", Message: "probe failed", Error: "boom"}
	s := e.String()
	for _, part := range []string{`"target":"mongodb://h:1"`, `"message":"probe failed"`, `"error":"boom"`} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %s, missing %s", s, part)
		}
	}
}

func TestDatabaseURI(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"localhost", 27017, "mongodb://localhost:27017"},
		{"10.0.0.5", 27018, "mongodb://10.0.0.5:27018"},
		{"::1", 27017, "mongodb://[::1]:27017"},
	}
	for _, tt := range tests {
		d := DatabaseConnection{Host: tt.host, Port: tt.port}
		if got := d.URI(); got != tt.want {
			t.Errorf("URI() = %q, want %q", got, tt.want)
		}
	}
}

func TestClientOptions(t *testing.T) {
	d := DatabaseConnection{
		Host:       "db",
		Port:       27017,
		Username:   "monitor",
		Password:   "pw",
		AuthSource: "admin",
		Timeout:    3 * time.Second,
	}
	opts := d.clientOptions()

	if opts.Auth == nil || opts.Auth.Username != "monitor" || opts.Auth.AuthSource != "admin" {
		t.Errorf("credentials not applied: %+v", opts.Auth)
	}
	if opts.ServerSelectionTimeout == nil || *opts.ServerSelectionTimeout != 3*time.Second {
		t.Errorf("server selection timeout = %v, want 3s", opts.ServerSelectionTimeout)
	}
	if opts.Direct == nil || !*opts.Direct {
		t.Error("expected a direct connection")
	}

	anon := DatabaseConnection{Host: "db", Port: 27017}
	if anon.clientOptions().Auth != nil {
		t.Error("no credentials expected without a username")
	}
}

func TestProbeRefusedReleasesClient(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	d := &DatabaseConnection{Host: "127.0.0.1", Port: 1, Timeout: 100 * time.Millisecond, Logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := d.Probe(ctx); err == nil {
		t.Fatal("expected an error probing a closed port")
	}
	if d.MongoClient != nil {
		t.Error("client should be released after Probe")
	}
}

func TestCurrentOperationCountNotConnected(t *testing.T) {
	d := &DatabaseConnection{Host: "h", Port: 1, Logger: logrus.New()}
	if _, err := d.CurrentOperationCount(context.Background()); err == nil {
		t.Fatal("expected error without a client")
	}
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %s, want info", l.GetLevel())
	}

	if _, err := NewLogger("chatty", ""); err == nil {
		t.Error("expected error for unknown level")
	}

	path := filepath.Join(t.TempDir(), "check.log")
	l, err = NewLogger("debug", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %s, want debug", l.GetLevel())
	}
	l.Debug("written to the rotated file")
}
