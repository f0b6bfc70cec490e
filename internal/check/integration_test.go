//go:build integration

package check

import (
	"bytes"
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"mongo-opcheck/internal"
)

func TestRunAgainstMongo(t *testing.T) {
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("start mongo: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate mongo: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	db := &internal.DatabaseConnection{
		Host:    host,
		Port:    port.Int(),
		Timeout: 10 * time.Second,
		Logger:  quietLogger(),
	}

	// currentOp always reports at least itself, so a zero critical limit breaches
	c := newChecker(db, Limits{Critical: intp(0)})
	c.Timeout = 10 * time.Second
	var out bytes.Buffer

	status := c.Run(ctx, &out)

	if status != Critical {
		t.Fatalf("status = %s, want critical (output %q)", status, out.String())
	}
	re := regexp.MustCompile(`^CheckMongoDBConnections critical: (\d+) operations \| operationCount=(\d+);;0;0;\n$`)
	if m := re.FindStringSubmatch(out.String()); m == nil || m[1] != m[2] {
		t.Errorf("output = %q", out.String())
	}
}
